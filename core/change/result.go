package change

import "sort"

// Result is the outcome of comparing a prior and a desired state.
type Result struct {
	Changes Changelog
	// Fields holds every compared top level field, Unchanged included.
	Fields      map[string]Kind
	ReplaceKeys []string
}

// NewResult sorts the changelog, summarises it over fields and lists the
// identity fields that changed.
func NewResult(fields []string, cl Changelog, identity ...string) Result {
	cl.Sort()

	summary := make(map[string]Kind, len(fields))
	for _, f := range fields {
		summary[f] = Unchanged
	}
	for f, k := range cl.Fields() {
		summary[f] = k
	}

	var replaceKeys []string
	for _, f := range identity {
		if summary[f] != Unchanged {
			replaceKeys = append(replaceKeys, f)
		}
	}
	sort.Strings(replaceKeys)

	return Result{
		Changes:     cl,
		Fields:      summary,
		ReplaceKeys: replaceKeys,
	}
}

func (r Result) Replace() bool {
	return len(r.ReplaceKeys) > 0
}

func (r Result) HasChanges() bool {
	return len(r.Changes) > 0
}

// ChangedFields lists fields with a kind other than Unchanged, sorted.
func (r Result) ChangedFields() []string {
	var out []string
	for f, k := range r.Fields {
		if k != Unchanged {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}
