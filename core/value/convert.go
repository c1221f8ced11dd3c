package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// FromInterface converts decoded Go data (as produced by encoding/json,
// yaml or structpb) into a Value. Keys of plain Go maps are sorted, because
// their iteration order carries no meaning.
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Map:
		return Object(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case map[string]interface{}:
		m, err := MapFromInterface(t)
		if err != nil {
			return Value{}, err
		}
		return Object(m), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return List(items...), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := FromInterface(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return List(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			v, err := FromInterface(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			m.Set(k, v)
		}
		return Object(m), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return Null(), nil
		}
		return FromInterface(rv.Elem().Interface())
	}
	return Value{}, fmt.Errorf("unsupported type %T", x)
}

// MapFromInterface converts a decoded object into a Map with sorted keys.
func MapFromInterface(in map[string]interface{}) (*Map, error) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewMap()
	for _, k := range keys {
		v, err := FromInterface(in[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m.Set(k, v)
	}
	return m, nil
}

// Interface converts v back to plain Go data. Whole numbers come back as
// int64 so they survive printing and re-encoding unchanged.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if isWhole(v.num) {
			return int64(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		return v.m.Interface()
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// Interface converts the map to a plain Go map. Ordering is lost.
func (m *Map) Interface() map[string]interface{} {
	out := make(map[string]interface{}, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}

func isWhole(f float64) bool {
	return f == float64(int64(f))
}
