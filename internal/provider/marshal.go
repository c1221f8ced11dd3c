package provider

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
)

// Property names shared by the schema, the codec and the diff.
const (
	propName          = "name"
	propType          = "type"
	propNamespace     = "namespace"
	propDescription   = "description"
	propServices      = "services"
	propTags          = "tags"
	propMetadata      = "metadata"
	propSchema        = "schema"
	propExternalLinks = "externalLinks"
	propSources       = "sources"
	propEnvironments  = "environments"

	propResourceID = "resourceId"
	propMRN        = "mrn"
	propVersion    = "version"
	propCreatedAt  = "createdAt"
	propUpdatedAt  = "updatedAt"

	propSource = "source"
	propTarget = "target"
	propStale  = "stale"
)

var assetOutputKeys = []resource.PropertyKey{propResourceID, propMRN, propVersion, propCreatedAt, propUpdatedAt}

// toValue converts an engine property into the value model. Secrets are
// unwrapped. Unknowns cannot be represented and are reported as errors.
func toValue(pv resource.PropertyValue) (value.Value, error) {
	switch {
	case pv.IsSecret():
		return toValue(pv.SecretValue().Element)
	case isUnknown(pv):
		return value.Null(), errUnknownValue
	case pv.IsOutput():
		return toValue(pv.OutputValue().Element)
	case pv.IsNull():
		return value.Null(), nil
	case pv.IsString():
		return value.String(pv.StringValue()), nil
	case pv.IsNumber():
		return value.Number(pv.NumberValue()), nil
	case pv.IsBool():
		return value.Bool(pv.BoolValue()), nil
	case pv.IsArray():
		items := make([]value.Value, 0, len(pv.ArrayValue()))
		for i, item := range pv.ArrayValue() {
			v, err := toValue(item)
			if err != nil {
				return value.Null(), fmt.Errorf("[%d]: %w", i, err)
			}
			items = append(items, v)
		}
		return value.List(items...), nil
	case pv.IsObject():
		m, err := toMap(pv.ObjectValue())
		if err != nil {
			return value.Null(), err
		}
		return value.Object(m), nil
	}
	return value.Null(), fmt.Errorf("unsupported property of type %s", pv.TypeString())
}

// toMap converts a property map. Engine maps carry no order so keys are
// inserted sorted.
func toMap(pm resource.PropertyMap) (*value.Map, error) {
	m := value.NewMap()
	for _, k := range pm.StableKeys() {
		v, err := toValue(pm[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m.Set(string(k), v)
	}
	return m, nil
}

func fromValue(v value.Value) resource.PropertyValue {
	switch v.Kind() {
	case value.KindString:
		return resource.NewStringProperty(v.StringValue())
	case value.KindNumber:
		return resource.NewNumberProperty(v.NumberValue())
	case value.KindBool:
		return resource.NewBoolProperty(v.BoolValue())
	case value.KindList:
		items := make([]resource.PropertyValue, 0, len(v.ListValue()))
		for _, item := range v.ListValue() {
			items = append(items, fromValue(item))
		}
		return resource.NewArrayProperty(items)
	case value.KindMap:
		return resource.NewObjectProperty(fromMap(v.MapValue()))
	}
	return resource.NewNullProperty()
}

func fromMap(m *value.Map) resource.PropertyMap {
	pm := resource.PropertyMap{}
	m.Range(func(k string, v value.Value) bool {
		pm[resource.PropertyKey(k)] = fromValue(v)
		return true
	})
	return pm
}

// decoder collects every type error of a property map instead of stopping
// at the first one, so Check can report them all.
type decoder struct {
	failures []*pulumirpc.CheckFailure
}

func (d *decoder) fail(property, format string, args ...interface{}) {
	d.failures = append(d.failures, &pulumirpc.CheckFailure{
		Property: property,
		Reason:   fmt.Sprintf(format, args...),
	})
}

func (d *decoder) err() error {
	if len(d.failures) == 0 {
		return nil
	}
	return checkFailuresError(d.failures)
}

func unwrap(pv resource.PropertyValue) resource.PropertyValue {
	for {
		switch {
		case pv.IsSecret():
			pv = pv.SecretValue().Element
		case pv.IsOutput() && pv.OutputValue().Known:
			pv = pv.OutputValue().Element
		default:
			return pv
		}
	}
}

func (d *decoder) string(pm resource.PropertyMap, key resource.PropertyKey, path string) string {
	pv, ok := pm[key]
	if !ok {
		return ""
	}
	pv = unwrap(pv)
	switch {
	case pv.IsNull() || pv.ContainsUnknowns():
		return ""
	case pv.IsString():
		return pv.StringValue()
	}
	d.fail(path, "expected a string, got %s", pv.TypeString())
	return ""
}

func (d *decoder) strings(pm resource.PropertyMap, key resource.PropertyKey, path string) []string {
	pv, ok := pm[key]
	if !ok {
		return nil
	}
	pv = unwrap(pv)
	if pv.IsNull() || pv.ContainsUnknowns() {
		return nil
	}
	if !pv.IsArray() {
		d.fail(path, "expected a list of strings, got %s", pv.TypeString())
		return nil
	}
	var out []string
	for i, item := range pv.ArrayValue() {
		item = unwrap(item)
		if !item.IsString() {
			d.fail(fmt.Sprintf("%s[%d]", path, i), "expected a string, got %s", item.TypeString())
			continue
		}
		out = append(out, item.StringValue())
	}
	return out
}

func (d *decoder) mapping(pm resource.PropertyMap, key resource.PropertyKey, path string) *value.Map {
	pv, ok := pm[key]
	if !ok {
		return nil
	}
	pv = unwrap(pv)
	if pv.IsNull() || pv.ContainsUnknowns() {
		return nil
	}
	if !pv.IsObject() {
		d.fail(path, "expected an object, got %s", pv.TypeString())
		return nil
	}
	m, err := toMap(pv.ObjectValue())
	if err != nil {
		d.fail(path, "%v", err)
		return nil
	}
	if m.Len() == 0 {
		return nil
	}
	return m
}

func (d *decoder) objects(pm resource.PropertyMap, key resource.PropertyKey, path string) []resource.PropertyMap {
	pv, ok := pm[key]
	if !ok {
		return nil
	}
	pv = unwrap(pv)
	if pv.IsNull() || pv.ContainsUnknowns() {
		return nil
	}
	if !pv.IsArray() {
		d.fail(path, "expected a list of objects, got %s", pv.TypeString())
		return nil
	}
	var out []resource.PropertyMap
	for i, item := range pv.ArrayValue() {
		item = unwrap(item)
		if !item.IsObject() {
			d.fail(fmt.Sprintf("%s[%d]", path, i), "expected an object, got %s", item.TypeString())
			continue
		}
		out = append(out, item.ObjectValue())
	}
	return out
}

// decodeAsset reads the input properties of an Asset. Output properties
// present in pm are ignored except for version, which the update path
// uses for its optimistic check.
func decodeAsset(pm resource.PropertyMap) (asset.Asset, error) {
	var d decoder
	ast := asset.Asset{
		Name:        d.string(pm, propName, propName),
		Type:        asset.Type(d.string(pm, propType, propType)),
		Namespace:   d.string(pm, propNamespace, propNamespace),
		Description: d.string(pm, propDescription, propDescription),
		Services:    d.strings(pm, propServices, propServices),
		Tags:        d.strings(pm, propTags, propTags),
		Metadata:    d.mapping(pm, propMetadata, propMetadata),
		Schema:      d.mapping(pm, propSchema, propSchema),
		Version:     d.string(pm, propVersion, propVersion),
	}

	for i, obj := range d.objects(pm, propExternalLinks, propExternalLinks) {
		path := fmt.Sprintf("%s[%d]", propExternalLinks, i)
		ast.ExternalLinks = append(ast.ExternalLinks, asset.ExternalLink{
			Name: d.string(obj, "name", path+".name"),
			URL:  d.string(obj, "url", path+".url"),
			Icon: d.string(obj, "icon", path+".icon"),
		})
	}

	for i, obj := range d.objects(pm, propSources, propSources) {
		path := fmt.Sprintf("%s[%d]", propSources, i)
		src := asset.Source{
			Name:       d.string(obj, "name", path+".name"),
			Properties: d.mapping(obj, "properties", path+".properties"),
		}
		if pv, ok := obj["priority"]; ok && !unwrap(pv).IsNull() && !pv.ContainsUnknowns() {
			pv = unwrap(pv)
			if pv.IsNumber() {
				p := int(pv.NumberValue())
				src.Priority = &p
			} else {
				d.fail(path+".priority", "expected a number, got %s", pv.TypeString())
			}
		}
		ast.Sources = append(ast.Sources, src)
	}

	if pv, ok := pm[propEnvironments]; ok && !unwrap(pv).IsNull() && !pv.ContainsUnknowns() {
		pv = unwrap(pv)
		if !pv.IsObject() {
			d.fail(propEnvironments, "expected an object, got %s", pv.TypeString())
		} else {
			envs := pv.ObjectValue()
			for _, k := range envs.StableKeys() {
				path := fmt.Sprintf("%s.%s", propEnvironments, k)
				env := unwrap(envs[k])
				if !env.IsObject() {
					d.fail(path, "expected an object, got %s", env.TypeString())
					continue
				}
				obj := env.ObjectValue()
				if ast.Environments == nil {
					ast.Environments = map[string]asset.Environment{}
				}
				ast.Environments[string(k)] = asset.Environment{
					Name:     d.string(obj, "name", path+".name"),
					Path:     d.string(obj, "path", path+".path"),
					Metadata: d.mapping(obj, "metadata", path+".metadata"),
				}
			}
		}
	}

	return ast, d.err()
}

func strings2Array(ss []string) resource.PropertyValue {
	items := make([]resource.PropertyValue, 0, len(ss))
	for _, s := range ss {
		items = append(items, resource.NewStringProperty(s))
	}
	return resource.NewArrayProperty(items)
}

// encodeAssetInputs renders the input properties of ast. Empty optional
// fields are left out so they round trip as absent.
func encodeAssetInputs(ast asset.Asset) resource.PropertyMap {
	pm := resource.PropertyMap{
		propName: resource.NewStringProperty(ast.Name),
		propType: resource.NewStringProperty(ast.Type.String()),
	}
	if ast.Namespace != "" {
		pm[propNamespace] = resource.NewStringProperty(ast.Namespace)
	}
	if ast.Description != "" {
		pm[propDescription] = resource.NewStringProperty(ast.Description)
	}
	if len(ast.Services) > 0 {
		pm[propServices] = strings2Array(ast.Services)
	}
	if len(ast.Tags) > 0 {
		pm[propTags] = strings2Array(ast.Tags)
	}
	if ast.Metadata.Len() > 0 {
		pm[propMetadata] = resource.NewObjectProperty(fromMap(ast.Metadata))
	}
	if ast.Schema.Len() > 0 {
		pm[propSchema] = resource.NewObjectProperty(fromMap(ast.Schema))
	}
	if len(ast.ExternalLinks) > 0 {
		links := make([]resource.PropertyValue, 0, len(ast.ExternalLinks))
		for _, l := range ast.ExternalLinks {
			obj := resource.PropertyMap{
				"name": resource.NewStringProperty(l.Name),
				"url":  resource.NewStringProperty(l.URL),
			}
			if l.Icon != "" {
				obj["icon"] = resource.NewStringProperty(l.Icon)
			}
			links = append(links, resource.NewObjectProperty(obj))
		}
		pm[propExternalLinks] = resource.NewArrayProperty(links)
	}
	if len(ast.Sources) > 0 {
		sources := make([]resource.PropertyValue, 0, len(ast.Sources))
		for _, s := range ast.Sources {
			obj := resource.PropertyMap{"name": resource.NewStringProperty(s.Name)}
			if s.Priority != nil {
				obj["priority"] = resource.NewNumberProperty(float64(*s.Priority))
			}
			if s.Properties.Len() > 0 {
				obj["properties"] = resource.NewObjectProperty(fromMap(s.Properties))
			}
			sources = append(sources, resource.NewObjectProperty(obj))
		}
		pm[propSources] = resource.NewArrayProperty(sources)
	}
	if len(ast.Environments) > 0 {
		envs := resource.PropertyMap{}
		keys := make([]string, 0, len(ast.Environments))
		for k := range ast.Environments {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			env := ast.Environments[k]
			obj := resource.PropertyMap{
				"name": resource.NewStringProperty(env.Name),
				"path": resource.NewStringProperty(env.Path),
			}
			if env.Metadata.Len() > 0 {
				obj["metadata"] = resource.NewObjectProperty(fromMap(env.Metadata))
			}
			envs[resource.PropertyKey(k)] = resource.NewObjectProperty(obj)
		}
		pm[propEnvironments] = resource.NewObjectProperty(envs)
	}
	return pm
}

// encodeAssetState renders inputs plus the computed outputs.
func encodeAssetState(ast asset.Asset) resource.PropertyMap {
	pm := encodeAssetInputs(ast)
	pm[propResourceID] = resource.NewStringProperty(ast.ID)
	pm[propMRN] = resource.NewStringProperty(ast.MRN)
	pm[propVersion] = resource.NewStringProperty(ast.Version)
	pm[propCreatedAt] = timeProperty(ast.CreatedAt)
	pm[propUpdatedAt] = timeProperty(ast.UpdatedAt)
	return pm
}

func timeProperty(t time.Time) resource.PropertyValue {
	if t.IsZero() {
		return resource.NewStringProperty("")
	}
	return resource.NewStringProperty(t.UTC().Format(time.RFC3339Nano))
}

func parseTime(pm resource.PropertyMap, key resource.PropertyKey) time.Time {
	pv := unwrap(pm[key])
	if !pv.IsString() {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, pv.StringValue())
	if err != nil {
		return time.Time{}
	}
	return t
}

// decodeAssetState reads a checkpointed Asset, outputs included.
func decodeAssetState(id string, pm resource.PropertyMap) (asset.Asset, error) {
	ast, err := decodeAsset(pm)
	if err != nil {
		return asset.Asset{}, err
	}
	ast.ID = id
	if ast.ID == "" {
		if pv := unwrap(pm[propResourceID]); pv.IsString() {
			ast.ID = pv.StringValue()
		}
	}
	if pv := unwrap(pm[propMRN]); pv.IsString() {
		ast.MRN = pv.StringValue()
	}
	ast.CreatedAt = parseTime(pm, propCreatedAt)
	ast.UpdatedAt = parseTime(pm, propUpdatedAt)
	return ast, nil
}

func decodeEdge(pm resource.PropertyMap) (source, target string, err error) {
	var d decoder
	source = d.string(pm, propSource, propSource)
	target = d.string(pm, propTarget, propTarget)
	return source, target, d.err()
}

func encodeEdgeInputs(source, target string) resource.PropertyMap {
	return resource.PropertyMap{
		propSource: resource.NewStringProperty(source),
		propTarget: resource.NewStringProperty(target),
	}
}

func encodeEdgeState(e lineage.Edge, stale bool) resource.PropertyMap {
	pm := encodeEdgeInputs(e.Source, e.Target)
	pm[propResourceID] = resource.NewStringProperty(e.ID)
	pm[propType] = resource.NewStringProperty(e.Type)
	pm[propStale] = resource.NewBoolProperty(stale)
	return pm
}

// propertyPath renders a change path the way the engine addresses nested
// properties. A numeric segment becomes an index only when the value it
// steps into is a list in one of docs; map keys that look like numbers stay
// keys.
func propertyPath(path []string, docs ...resource.PropertyMap) string {
	if len(path) == 0 {
		return ""
	}

	cur := make([]resource.PropertyValue, 0, len(docs))
	for _, d := range docs {
		cur = append(cur, resource.NewObjectProperty(d))
	}

	pp := make(resource.PropertyPath, 0, len(path))
	for _, seg := range path {
		n, err := strconv.Atoi(seg)
		index := err == nil && n >= 0 && anyArray(cur)

		var next []resource.PropertyValue
		for _, v := range cur {
			switch {
			case index && v.IsArray():
				if arr := v.ArrayValue(); n < len(arr) {
					next = append(next, arr[n])
				}
			case !index && v.IsObject():
				if e, ok := v.ObjectValue()[resource.PropertyKey(seg)]; ok {
					next = append(next, e)
				}
			}
		}
		cur = next

		if index {
			pp = append(pp, n)
		} else {
			pp = append(pp, seg)
		}
	}
	return pp.String()
}

func anyArray(vs []resource.PropertyValue) bool {
	for _, v := range vs {
		if v.IsArray() {
			return true
		}
	}
	return false
}

func isUnknown(pv resource.PropertyValue) bool {
	return pv.IsComputed() || (pv.IsOutput() && !pv.OutputValue().Known)
}

// unknownKeys lists the top level properties whose value is not fully known
// yet, as happens during previews.
func unknownKeys(pm resource.PropertyMap) map[string]bool {
	out := map[string]bool{}
	for k, v := range pm {
		if v.ContainsUnknowns() {
			out[string(k)] = true
		}
	}
	return out
}

// topLevel returns the property a failure path such as
// externalLinks[0].url belongs to.
func topLevel(path string) string {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i]
	}
	return path
}
