// Package change describes field level differences between two resource
// states.
package change

import (
	"sort"
	"strings"

	"github.com/goto/pulumi-marmot/core/value"
)

type Kind int

const (
	Unchanged Kind = iota
	Add
	Modify
	Remove
)

func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Modify:
		return "modify"
	case Remove:
		return "remove"
	}
	return "unchanged"
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Change is one difference found at Path. From is null for Add, To is null
// for Remove.
type Change struct {
	Path []string    `json:"path"`
	Kind Kind        `json:"kind"`
	From value.Value `json:"from"`
	To   value.Value `json:"to"`
}

func (c Change) PathString() string {
	return strings.Join(c.Path, ".")
}

// Field is the top level field the change belongs to.
func (c Change) Field() string {
	if len(c.Path) == 0 {
		return ""
	}
	return c.Path[0]
}

type Changelog []Change

// Sort orders changes by path, then kind, then the textual form of the
// values. The result only depends on the set of changes.
func (cl Changelog) Sort() {
	sort.SliceStable(cl, func(i, j int) bool {
		a, b := cl[i], cl[j]
		if c := comparePath(a.Path, b.Path); c != 0 {
			return c < 0
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if af, bf := a.From.String(), b.From.String(); af != bf {
			return af < bf
		}
		return a.To.String() < b.To.String()
	})
}

// Fields summarises the log per top level field. A field holding both adds
// and removes is reported as modified.
func (cl Changelog) Fields() map[string]Kind {
	out := map[string]Kind{}
	for _, c := range cl {
		f := c.Field()
		prev, seen := out[f]
		switch {
		case !seen:
			out[f] = c.Kind
		case prev != c.Kind:
			out[f] = Modify
		}
	}
	return out
}

// Filter returns the changes under the given top level field.
func (cl Changelog) Filter(field string) Changelog {
	var out Changelog
	for _, c := range cl {
		if c.Field() == field {
			out = append(out, c)
		}
	}
	return out
}

// Prefix returns a copy of the log with prefix prepended to every path.
func (cl Changelog) Prefix(prefix []string) Changelog {
	if len(cl) == 0 {
		return nil
	}
	out := make(Changelog, len(cl))
	for i, c := range cl {
		path := make([]string, 0, len(prefix)+len(c.Path))
		path = append(path, prefix...)
		c.Path = append(path, c.Path...)
		out[i] = c
	}
	return out
}

func (cl Changelog) Empty() bool {
	return len(cl) == 0
}

func comparePath(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
