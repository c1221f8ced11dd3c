package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/change"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
)

// checkAsset validates asset inputs and fills in defaults. Services left
// out keep the ones of the previous inputs.
func checkAsset(olds, news resource.PropertyMap) (resource.PropertyMap, []*pulumirpc.CheckFailure, error) {
	inputs := news.Copy()
	if !hasValue(inputs, propServices) && hasValue(olds, propServices) {
		inputs[propServices] = olds[propServices]
	}
	if !hasValue(inputs, propNamespace) {
		inputs[propNamespace] = resource.NewStringProperty(asset.DefaultNamespace)
	}
	unknown := unknownKeys(inputs)

	ast, err := decodeAsset(inputs)
	if err == nil {
		err = ast.Normalize().Validate()
	}
	if err != nil {
		failures, ok := checkFailures(err)
		if !ok {
			return nil, nil, err
		}
		return inputs, knownFailures(failures, unknown), nil
	}
	return inputs, nil, nil
}

func hasValue(pm resource.PropertyMap, key resource.PropertyKey) bool {
	pv, ok := pm[key]
	if !ok {
		return false
	}
	if pv.ContainsUnknowns() {
		return true
	}
	pv = unwrap(pv)
	switch {
	case pv.IsNull():
		return false
	case pv.IsArray():
		return len(pv.ArrayValue()) > 0
	case pv.IsString():
		return pv.StringValue() != ""
	}
	return true
}

// knownFailures drops failures on properties that are not known yet.
func knownFailures(failures []*pulumirpc.CheckFailure, unknown map[string]bool) []*pulumirpc.CheckFailure {
	var out []*pulumirpc.CheckFailure
	for _, f := range failures {
		if unknown[topLevel(f.Property)] {
			continue
		}
		out = append(out, f)
	}
	sortFailures(out)
	return out
}

// diffAsset compares the checkpointed state with the new inputs. Unknown
// inputs count as updates, and as replacements on identity fields.
func diffAsset(req *pulumirpc.DiffRequest) (*pulumirpc.DiffResponse, error) {
	olds, err := unmarshal(req.GetOlds())
	if err != nil {
		return nil, err
	}
	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}
	if err := applyIgnoreChanges(olds, news, req.GetIgnoreChanges()); err != nil {
		return nil, err
	}

	unknown := unknownKeys(news)
	known := news.Copy()
	for k := range unknown {
		key := resource.PropertyKey(k)
		if v, ok := olds[key]; ok {
			known[key] = v
		} else {
			delete(known, key)
		}
	}

	prior, err := decodeAsset(olds)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	desired, err := decodeAsset(known)
	if err != nil {
		return nil, err
	}
	if len(desired.Services) == 0 {
		desired.Services = prior.Services
	}

	result, err := asset.Diff(prior, desired)
	if err != nil {
		return nil, err
	}
	return assetDiffResponse(result, unknown, encodeAssetInputs(prior), encodeAssetInputs(desired)), nil
}

// assetDiffResponse builds the engine diff. docs are the compared inputs,
// used to tell list indices from map keys in change paths.
func assetDiffResponse(result change.Result, unknown map[string]bool, docs ...resource.PropertyMap) *pulumirpc.DiffResponse {
	identity := map[string]bool{}
	for _, f := range asset.IdentityFields {
		identity[f] = true
	}
	replacing := map[string]bool{}
	for _, f := range result.ReplaceKeys {
		replacing[f] = true
	}

	detailed := map[string]*pulumirpc.PropertyDiff{}
	for _, ch := range result.Changes {
		key := diffKey(ch.Path, docs...)
		kind := propertyDiffKind(ch.Kind, replacing[ch.Field()])
		if prev, ok := detailed[key]; ok && prev.Kind != kind {
			kind = propertyDiffKind(change.Modify, replacing[ch.Field()])
		}
		detailed[key] = &pulumirpc.PropertyDiff{Kind: kind, InputDiff: true}
	}

	replaces := append([]string(nil), result.ReplaceKeys...)
	diffs := result.ChangedFields()
	for k := range unknown {
		if _, ok := detailed[k]; !ok {
			detailed[k] = &pulumirpc.PropertyDiff{Kind: propertyDiffKind(change.Modify, identity[k]), InputDiff: true}
		}
		if identity[k] && !contains(replaces, k) {
			replaces = append(replaces, k)
		}
		if !contains(diffs, k) {
			diffs = append(diffs, k)
		}
	}
	sort.Strings(replaces)
	sort.Strings(diffs)

	resp := &pulumirpc.DiffResponse{
		Changes:         pulumirpc.DiffResponse_DIFF_NONE,
		Diffs:           diffs,
		DetailedDiff:    detailed,
		HasDetailedDiff: true,
	}
	if len(diffs) > 0 {
		resp.Changes = pulumirpc.DiffResponse_DIFF_SOME
	}
	if len(replaces) > 0 {
		resp.Replaces = replaces
		// The replacement has the same MRN, so the old asset must go first.
		resp.DeleteBeforeReplace = true
	} else {
		resp.Stables = []string{propResourceID, propMRN, propCreatedAt}
	}
	return resp
}

// diffKey addresses a change in the detailed diff. Set members and links
// matched by name have no stable index, so they collapse onto the field.
func diffKey(path []string, docs ...resource.PropertyMap) string {
	switch path[0] {
	case propServices, propTags, propExternalLinks:
		return path[0]
	}
	return propertyPath(path, docs...)
}

func propertyDiffKind(k change.Kind, replace bool) pulumirpc.PropertyDiff_Kind {
	switch k {
	case change.Add:
		if replace {
			return pulumirpc.PropertyDiff_ADD_REPLACE
		}
		return pulumirpc.PropertyDiff_ADD
	case change.Remove:
		if replace {
			return pulumirpc.PropertyDiff_DELETE_REPLACE
		}
		return pulumirpc.PropertyDiff_DELETE
	}
	if replace {
		return pulumirpc.PropertyDiff_UPDATE_REPLACE
	}
	return pulumirpc.PropertyDiff_UPDATE
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// applyIgnoreChanges copies the old value of every ignored path into news.
func applyIgnoreChanges(olds, news resource.PropertyMap, paths []string) error {
	oldObj, newObj := resource.NewObjectProperty(olds), resource.NewObjectProperty(news)
	for _, p := range paths {
		pp, err := resource.ParsePropertyPath(p)
		if err != nil {
			return fmt.Errorf("ignoreChanges %q: %w", p, err)
		}
		if v, ok := pp.Get(oldObj); ok {
			pp.Set(newObj, v)
		} else {
			pp.Delete(newObj)
		}
	}
	return nil
}

func computed() resource.PropertyValue {
	return resource.MakeComputed(resource.NewStringProperty(""))
}

func stateString(pm resource.PropertyMap, key resource.PropertyKey) string {
	if pv := unwrap(pm[key]); pv.IsString() {
		return pv.StringValue()
	}
	return ""
}

func (p *Provider) createAsset(ctx context.Context, c *call, req *pulumirpc.CreateRequest) (*pulumirpc.CreateResponse, error) {
	inputs, err := unmarshal(req.GetProperties())
	if err != nil {
		return nil, err
	}
	ast, err := decodeAsset(inputs)
	if err != nil {
		return nil, err
	}

	if req.GetPreview() {
		prepared := ast.Normalize()
		if err := prepared.Validate(); err != nil && len(unknownKeys(inputs)) == 0 {
			return nil, err
		}
		outputs := inputs.Copy()
		outputs[propResourceID] = computed()
		outputs[propMRN] = resource.NewStringProperty(prepared.MRN)
		if identityUnknown(inputs) {
			outputs[propMRN] = computed()
		}
		outputs[propVersion] = resource.NewStringProperty(asset.BaseVersion)
		outputs[propCreatedAt] = computed()
		outputs[propUpdatedAt] = computed()
		props, err := marshal(outputs)
		if err != nil {
			return nil, err
		}
		return &pulumirpc.CreateResponse{Properties: props}, nil
	}

	b, err := p.configured()
	if err != nil {
		return nil, err
	}
	var created asset.Asset
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		created, err = b.assets.Create(ctx, ast)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created.Version == "" {
		created.Version = asset.BaseVersion
	}
	c.logger.Info("asset created", "id", created.ID, "mrn", created.MRN)

	props, err := marshal(encodeAssetState(created))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.CreateResponse{Id: created.ID, Properties: props}, nil
}

func identityUnknown(inputs resource.PropertyMap) bool {
	unknown := unknownKeys(inputs)
	for _, f := range asset.IdentityFields {
		if unknown[f] {
			return true
		}
	}
	return false
}

// readAsset refreshes the state from the store. A missing asset is
// reported with an empty id so the engine drops it.
func (p *Provider) readAsset(ctx context.Context, c *call, req *pulumirpc.ReadRequest) (*pulumirpc.ReadResponse, error) {
	b, err := p.configured()
	if err != nil {
		return nil, err
	}
	state, err := unmarshal(req.GetProperties())
	if err != nil {
		return nil, err
	}

	var ast asset.Asset
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		ast, err = b.assets.Get(ctx, req.GetId())
		return err
	})
	if isNotFound(err) {
		c.logger.Info("asset is gone", "id", req.GetId())
		return &pulumirpc.ReadResponse{}, nil
	}
	if err != nil {
		return nil, err
	}

	if ast.Version == "" {
		ast.Version = stateString(state, propVersion)
	}
	if ast.Version == "" {
		ast.Version = asset.BaseVersion
	}
	if ast.CreatedAt.IsZero() {
		ast.CreatedAt = parseTime(state, propCreatedAt)
	}
	if ast.UpdatedAt.IsZero() {
		ast.UpdatedAt = parseTime(state, propUpdatedAt)
	}

	props, err := marshal(encodeAssetState(ast))
	if err != nil {
		return nil, err
	}
	inputs, err := marshal(encodeAssetInputs(ast))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.ReadResponse{Id: ast.ID, Properties: props, Inputs: inputs}, nil
}

func (p *Provider) updateAsset(ctx context.Context, c *call, req *pulumirpc.UpdateRequest) (*pulumirpc.UpdateResponse, error) {
	olds, err := unmarshal(req.GetOlds())
	if err != nil {
		return nil, err
	}
	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}
	prior, err := decodeAssetState(req.GetId(), olds)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	ast, err := decodeAsset(news)
	if err != nil {
		return nil, err
	}
	ast.Version = prior.Version

	if req.GetPreview() {
		outputs := news.Copy()
		outputs[propResourceID] = resource.NewStringProperty(req.GetId())
		outputs[propMRN] = resource.NewStringProperty(prior.MRN)
		outputs[propVersion] = computed()
		outputs[propCreatedAt] = timeProperty(prior.CreatedAt)
		outputs[propUpdatedAt] = computed()
		props, err := marshal(outputs)
		if err != nil {
			return nil, err
		}
		return &pulumirpc.UpdateResponse{Properties: props}, nil
	}

	b, err := p.configured()
	if err != nil {
		return nil, err
	}
	var (
		updated asset.Asset
		changes change.Changelog
	)
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		updated, changes, err = b.assets.Update(ctx, req.GetId(), ast)
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = prior.CreatedAt
	}
	c.logger.Info("asset updated", "id", updated.ID, "version", updated.Version, "changes", len(changes))

	props, err := marshal(encodeAssetState(updated))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.UpdateResponse{Properties: props}, nil
}

// deleteAsset removes the asset. An asset that is already gone counts as
// deleted.
func (p *Provider) deleteAsset(ctx context.Context, c *call, req *pulumirpc.DeleteRequest) error {
	b, err := p.configured()
	if err != nil {
		return err
	}
	err = c.withRetry(ctx, func(ctx context.Context) error {
		return b.assets.Delete(ctx, req.GetId())
	})
	if isNotFound(err) {
		p.warn(ctx, c.urn, fmt.Sprintf("asset %q was already deleted", req.GetId()))
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("asset deleted", "id", req.GetId())
	return nil
}
