package provider

import (
	"context"
	"fmt"

	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
)

func checkLineage(news resource.PropertyMap) (resource.PropertyMap, []*pulumirpc.CheckFailure, error) {
	inputs := resource.PropertyMap{}
	for _, k := range []resource.PropertyKey{propSource, propTarget} {
		if v, ok := news[k]; ok {
			inputs[k] = v
		}
	}
	unknown := unknownKeys(inputs)

	source, target, err := decodeEdge(inputs)
	if err == nil && len(unknown) == 0 {
		err = lineage.Validate(source, target)
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

// diffLineage compares endpoints only. Edges are always updated in place
// and resourceId never takes part.
func diffLineage(req *pulumirpc.DiffRequest) (*pulumirpc.DiffResponse, error) {
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

	prior := lineage.Edge{Source: stateString(olds, propSource), Target: stateString(olds, propTarget)}
	source, target, err := decodeEdge(news)
	if err != nil {
		return nil, err
	}

	unknown := unknownKeys(news)
	if unknown[propSource] {
		source = prior.Source
	}
	if unknown[propTarget] {
		target = prior.Target
	}

	result := lineage.Compare(prior, source, target).Result()
	for k := range unknown {
		if k == propSource || k == propTarget {
			result.Fields[k] = change.Modify
		}
	}

	resp := &pulumirpc.DiffResponse{
		Changes:         pulumirpc.DiffResponse_DIFF_NONE,
		Diffs:           result.ChangedFields(),
		DetailedDiff:    map[string]*pulumirpc.PropertyDiff{},
		HasDetailedDiff: true,
		Stables:         []string{propResourceID, propType},
	}
	for _, f := range resp.Diffs {
		resp.DetailedDiff[f] = &pulumirpc.PropertyDiff{Kind: pulumirpc.PropertyDiff_UPDATE, InputDiff: true}
	}
	if len(resp.Diffs) > 0 {
		resp.Changes = pulumirpc.DiffResponse_DIFF_SOME
	}
	return resp, nil
}

func (p *Provider) createLineage(ctx context.Context, c *call, req *pulumirpc.CreateRequest) (*pulumirpc.CreateResponse, error) {
	inputs, err := unmarshal(req.GetProperties())
	if err != nil {
		return nil, err
	}
	source, target, err := decodeEdge(inputs)
	if err != nil {
		return nil, err
	}

	if req.GetPreview() {
		if len(unknownKeys(inputs)) == 0 {
			if err := lineage.Validate(source, target); err != nil {
				return nil, err
			}
		}
		outputs := inputs.Copy()
		outputs[propResourceID] = computed()
		outputs[propType] = resource.NewStringProperty(lineage.TypeDirect)
		outputs[propStale] = resource.NewBoolProperty(false)
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
	var edge lineage.Edge
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		edge, err = b.edges.Create(ctx, source, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("lineage created", "id", edge.ID, "source", source, "target", target)

	props, err := marshal(encodeEdgeState(edge, false))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.CreateResponse{Id: edge.ID, Properties: props}, nil
}

// readLineage refreshes the edge and flags it stale when an endpoint no
// longer resolves.
func (p *Provider) readLineage(ctx context.Context, c *call, req *pulumirpc.ReadRequest) (*pulumirpc.ReadResponse, error) {
	b, err := p.configured()
	if err != nil {
		return nil, err
	}

	var (
		edge  lineage.Edge
		stale bool
	)
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		if edge, err = b.edges.Get(ctx, req.GetId()); err != nil {
			return err
		}
		stale, err = b.edges.CheckStale(ctx, edge)
		return err
	})
	if isNotFound(err) {
		c.logger.Info("lineage is gone", "id", req.GetId())
		return &pulumirpc.ReadResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	if stale {
		p.warn(ctx, c.urn, fmt.Sprintf("lineage %s -> %s refers to an asset that no longer exists", edge.Source, edge.Target))
	}

	props, err := marshal(encodeEdgeState(edge, stale))
	if err != nil {
		return nil, err
	}
	inputs, err := marshal(encodeEdgeInputs(edge.Source, edge.Target))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.ReadResponse{Id: edge.ID, Properties: props, Inputs: inputs}, nil
}

func (p *Provider) updateLineage(ctx context.Context, c *call, req *pulumirpc.UpdateRequest) (*pulumirpc.UpdateResponse, error) {
	olds, err := unmarshal(req.GetOlds())
	if err != nil {
		return nil, err
	}
	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}
	source, target, err := decodeEdge(news)
	if err != nil {
		return nil, err
	}

	if req.GetPreview() {
		outputs := news.Copy()
		outputs[propResourceID] = resource.NewStringProperty(req.GetId())
		outputs[propType] = resource.NewStringProperty(stateString(olds, propType))
		outputs[propStale] = resource.NewBoolProperty(false)
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
	var edge lineage.Edge
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		edge, err = b.edges.Update(ctx, req.GetId(), source, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("lineage updated", "id", edge.ID, "source", source, "target", target)

	props, err := marshal(encodeEdgeState(edge, false))
	if err != nil {
		return nil, err
	}
	return &pulumirpc.UpdateResponse{Properties: props}, nil
}

func (p *Provider) deleteLineage(ctx context.Context, c *call, req *pulumirpc.DeleteRequest) error {
	b, err := p.configured()
	if err != nil {
		return err
	}
	err = c.withRetry(ctx, func(ctx context.Context) error {
		return b.edges.Delete(ctx, req.GetId())
	})
	if isNotFound(err) {
		p.warn(ctx, c.urn, fmt.Sprintf("lineage %q was already deleted", req.GetId()))
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Info("lineage deleted", "id", req.GetId())
	return nil
}
