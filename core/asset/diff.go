package asset

import (
	"fmt"
	"sort"

	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/goto/pulumi-marmot/lib/set"
	"github.com/r3labs/diff/v2"
)

// DiffFields lists the input fields compared by Diff.
var DiffFields = []string{
	"name", "type", "namespace", "description",
	"services", "tags", "metadata", "schema",
	"externalLinks", "sources", "environments",
}

// IdentityFields are the fields an MRN is built from. Changing any of them
// so that the MRN changes needs a replacement.
var IdentityFields = []string{"type", "name", "namespace"}

// Diff compares the inputs of two assets. Computed fields such as ID,
// version and timestamps are ignored. Both sides are normalized first, so
// an empty namespace equals the default one.
func Diff(prior, desired Asset) (change.Result, error) {
	prior, desired = prior.Normalize(), desired.Normalize()

	var cl change.Changelog
	cl = append(cl, scalarDiff("name", prior.Name, desired.Name)...)
	cl = append(cl, scalarDiff("type", prior.Type.String(), desired.Type.String())...)
	cl = append(cl, scalarDiff("namespace", prior.Namespace, desired.Namespace)...)
	cl = append(cl, scalarDiff("description", prior.Description, desired.Description)...)
	cl = append(cl, setDiff("services", prior.Services, desired.Services)...)
	cl = append(cl, setDiff("tags", prior.Tags, desired.Tags)...)
	cl = append(cl, mapDiff([]string{"metadata"}, prior.Metadata, desired.Metadata)...)

	schemaChanges, err := structuralDiff("schema", prior.Schema.Interface(), desired.Schema.Interface())
	if err != nil {
		return change.Result{}, err
	}
	cl = append(cl, schemaChanges...)

	sourceChanges, err := structuralDiff("sources", sourcesDocument(prior.Sources), sourcesDocument(desired.Sources))
	if err != nil {
		return change.Result{}, err
	}
	cl = append(cl, sourceChanges...)

	cl = append(cl, linksDiff(prior.ExternalLinks, desired.ExternalLinks)...)
	cl = append(cl, environmentsDiff(prior.Environments, desired.Environments)...)

	return change.NewResult(DiffFields, cl, changedIdentity(prior, desired)...), nil
}

func scalarDiff(field, from, to string) change.Changelog {
	if from == to {
		return nil
	}
	return change.Changelog{{
		Path: []string{field},
		Kind: change.Modify,
		From: value.String(from),
		To:   value.String(to),
	}}
}

// setDiff reports one Add per new member and one Remove per dropped member.
// Order and duplicates are ignored.
func setDiff(field string, from, to []string) change.Changelog {
	before := set.NewStringSet(from...)
	after := set.NewStringSet(to...)

	var cl change.Changelog
	for _, m := range after.Difference(before) {
		cl = append(cl, change.Change{Path: []string{field}, Kind: change.Add, To: value.String(m)})
	}
	for _, m := range before.Difference(after) {
		cl = append(cl, change.Change{Path: []string{field}, Kind: change.Remove, From: value.String(m)})
	}
	return cl
}

// mapDiff compares two maps per key. Values are compared with
// value.Equivalent so a number that came back from the backend as a string
// does not count as a change.
func mapDiff(prefix []string, from, to *value.Map) change.Changelog {
	var cl change.Changelog
	for _, k := range unionKeys(from, to) {
		before, inBefore := from.Get(k)
		after, inAfter := to.Get(k)
		path := appendPath(prefix, k)

		switch {
		case !inBefore:
			cl = append(cl, change.Change{Path: path, Kind: change.Add, To: after})
		case !inAfter:
			cl = append(cl, change.Change{Path: path, Kind: change.Remove, From: before})
		case !before.Equivalent(after):
			cl = append(cl, change.Change{Path: path, Kind: change.Modify, From: before, To: after})
		}
	}
	return cl
}

func unionKeys(a, b *value.Map) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, m := range []*value.Map{a, b} {
		for _, k := range m.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// structuralDiff runs a recursive diff over plain documents and prefixes
// every path with field. Slice positions are significant.
func structuralDiff(field string, from, to interface{}) (change.Changelog, error) {
	changes, err := diff.Diff(from, to,
		diff.SliceOrdering(true),
		diff.DiscardComplexOrigin(),
		diff.AllowTypeMismatch(true),
	)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", field, err)
	}

	cl := make(change.Changelog, 0, len(changes))
	for _, c := range changes {
		kind := change.Modify
		switch c.Type {
		case diff.CREATE:
			kind = change.Add
		case diff.DELETE:
			kind = change.Remove
		}
		cl = append(cl, change.Change{
			Path: appendPath([]string{field}, c.Path...),
			Kind: kind,
			From: toValue(c.From),
			To:   toValue(c.To),
		})
	}
	return cl, nil
}

func toValue(x interface{}) value.Value {
	v, err := value.FromInterface(x)
	if err != nil {
		return value.String(fmt.Sprintf("%v", x))
	}
	return v
}

func sourcesDocument(sources []Source) []interface{} {
	doc := make([]interface{}, 0, len(sources))
	for _, s := range sources {
		doc = append(doc, sourceValue(s).Interface())
	}
	return doc
}

func sourceValue(s Source) value.Value {
	m := value.NewMap()
	m.Set("name", value.String(s.Name))
	if s.Priority != nil {
		m.Set("priority", value.Number(float64(*s.Priority)))
	}
	m.Set("properties", value.Object(s.Properties.Clone()))
	return value.Object(m)
}

// linksDiff matches links by name, so reordering the list is not a change.
// Links that share a name are first matched by content. Whatever is left is
// paired in order and told apart by occurrence, e.g. docs[1].
func linksDiff(from, to []ExternalLink) change.Changelog {
	before := groupLinks(from)
	after := groupLinks(to)

	names := make([]string, 0, len(before)+len(after))
	for name := range before {
		names = append(names, name)
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var cl change.Changelog
	for _, name := range names {
		b, a := unmatchedLinks(before[name], after[name])
		for i := 0; i < len(b) || i < len(a); i++ {
			key := name
			if i > 0 {
				key = fmt.Sprintf("%s[%d]", name, i)
			}
			path := []string{"externalLinks", key}
			switch {
			case i >= len(b):
				cl = append(cl, change.Change{Path: path, Kind: change.Add, To: linkValue(a[i])})
			case i >= len(a):
				cl = append(cl, change.Change{Path: path, Kind: change.Remove, From: linkValue(b[i])})
			default:
				cl = append(cl, scalarDiff("url", b[i].URL, a[i].URL).Prefix(path)...)
				cl = append(cl, scalarDiff("icon", b[i].Icon, a[i].Icon).Prefix(path)...)
			}
		}
	}
	return cl
}

func groupLinks(links []ExternalLink) map[string][]ExternalLink {
	out := make(map[string][]ExternalLink, len(links))
	for _, l := range links {
		out[l.Name] = append(out[l.Name], l)
	}
	return out
}

// unmatchedLinks drops every link present on both sides, counting
// duplicates, and returns the rest of each side in order.
func unmatchedLinks(from, to []ExternalLink) ([]ExternalLink, []ExternalLink) {
	used := make([]bool, len(to))
	var restFrom []ExternalLink
	for _, l := range from {
		matched := false
		for i, m := range to {
			if !used[i] && m == l {
				used[i] = true
				matched = true
				break
			}
		}
		if !matched {
			restFrom = append(restFrom, l)
		}
	}

	var restTo []ExternalLink
	for i, m := range to {
		if !used[i] {
			restTo = append(restTo, m)
		}
	}
	return restFrom, restTo
}

func linkValue(l ExternalLink) value.Value {
	m := value.NewMap()
	m.Set("name", value.String(l.Name))
	m.Set("url", value.String(l.URL))
	if l.Icon != "" {
		m.Set("icon", value.String(l.Icon))
	}
	return value.Object(m)
}

func environmentsDiff(from, to map[string]Environment) change.Changelog {
	keys := make([]string, 0, len(from)+len(to))
	for k := range from {
		keys = append(keys, k)
	}
	for k := range to {
		if _, ok := from[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var cl change.Changelog
	for _, k := range keys {
		b, inBefore := from[k]
		a, inAfter := to[k]
		path := []string{"environments", k}
		switch {
		case !inBefore:
			cl = append(cl, change.Change{Path: path, Kind: change.Add, To: environmentValue(a)})
		case !inAfter:
			cl = append(cl, change.Change{Path: path, Kind: change.Remove, From: environmentValue(b)})
		default:
			cl = append(cl, scalarDiff("name", b.Name, a.Name).Prefix(path)...)
			cl = append(cl, scalarDiff("path", b.Path, a.Path).Prefix(path)...)
			cl = append(cl, mapDiff(appendPath(path, "metadata"), b.Metadata, a.Metadata)...)
		}
	}
	return cl
}

func environmentValue(e Environment) value.Value {
	m := value.NewMap()
	m.Set("name", value.String(e.Name))
	m.Set("path", value.String(e.Path))
	m.Set("metadata", value.Object(e.Metadata.Clone()))
	return value.Object(m)
}

func appendPath(prefix []string, rest ...string) []string {
	out := make([]string, 0, len(prefix)+len(rest))
	out = append(out, prefix...)
	return append(out, rest...)
}
