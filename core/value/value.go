// Package value holds the tagged union used for free-form asset documents
// such as metadata, schema and source properties.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tells which member of the union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	}
	return "unknown"
}

// Value is one of: null, string, number, bool, ordered map or list.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	m    *Map
	list []Value
}

func Null() Value { return Value{} }

func String(s string) Value { return Value{kind: KindString, str: s} }

func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Object wraps m. A nil map is stored as an empty one.
func Object(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) StringValue() string { return v.str }

func (v Value) NumberValue() float64 { return v.num }

func (v Value) BoolValue() bool { return v.b }

func (v Value) MapValue() *Map { return v.m }

func (v Value) ListValue() []Value { return v.list }

// Equal reports strict structural equality. Map key order is ignored, list
// order is not.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Equivalent compares like Equal but treats scalars with the same textual
// form as equal, so "24" and 24 match. Catalog backends do not always keep
// the scalar type of metadata values, and treating those as changes would
// produce a permanent diff.
func (v Value) Equivalent(o Value) bool {
	if v.isScalar() && o.isScalar() {
		return v.Text() == o.Text()
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindMap:
		if v.m.Len() != o.m.Len() {
			return false
		}
		equal := true
		v.m.Range(func(k string, val Value) bool {
			other, ok := o.m.Get(k)
			if !ok || !val.Equivalent(other) {
				equal = false
			}
			return equal
		})
		return equal
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equivalent(o.list[i]) {
				return false
			}
		}
		return true
	}
	return v.Equal(o)
}

func (v Value) isScalar() bool {
	return v.kind == KindString || v.kind == KindNumber || v.kind == KindBool
}

// Text renders scalars the way they are commonly written in configuration.
// Whole numbers print without a fraction.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	}
	return v.String()
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber, KindBool:
		return v.Text()
	case KindMap:
		var sb strings.Builder
		sb.WriteString("{")
		for i, k := range v.m.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			val, _ := v.m.Get(k)
			fmt.Fprintf(&sb, "%s: %s", k, val.String())
		}
		sb.WriteString("}")
		return sb.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return Object(v.m.Clone())
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	}
	return v
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
