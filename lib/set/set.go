package set

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of strings that encodes to JSON as a sorted list.
type StringSet map[string]struct{}

func NewStringSet(values ...string) StringSet {
	ss := make(StringSet, len(values))
	for _, value := range values {
		ss.Add(value)
	}
	return ss
}

func (ss StringSet) Add(v string) StringSet {
	ss[v] = struct{}{}
	return ss
}

func (ss StringSet) Has(v string) bool {
	_, ok := ss[v]
	return ok
}

// Sorted returns the members in ascending order.
func (ss StringSet) Sorted() []string {
	values := make([]string, 0, len(ss))
	for v := range ss {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Difference returns the sorted members of ss that are not in o.
func (ss StringSet) Difference(o StringSet) []string {
	var values []string
	for _, v := range ss.Sorted() {
		if !o.Has(v) {
			values = append(values, v)
		}
	}
	return values
}

func (ss StringSet) Equal(o StringSet) bool {
	if len(ss) != len(o) {
		return false
	}
	for v := range ss {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

func (ss StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ss.Sorted())
}

func (ss *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*ss = NewStringSet(values...)
	return nil
}
