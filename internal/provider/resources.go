package provider

import (
	"context"
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
	"google.golang.org/protobuf/types/known/emptypb"
)

func resourceType(urn resource.URN) (string, error) {
	if !urn.IsValid() {
		return "", fmt.Errorf("%w: invalid urn %q", errUnknownResource, urn)
	}
	switch typ := string(urn.Type()); typ {
	case assetToken, lineageToken:
		return typ, nil
	default:
		return "", fmt.Errorf("%w %s", errUnknownResource, typ)
	}
}

// Check validates inputs. Input problems come back as failures, not as an
// error.
func (p *Provider) Check(ctx context.Context, req *pulumirpc.CheckRequest) (resp *pulumirpc.CheckResponse, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Check", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	olds, err := unmarshal(req.GetOlds())
	if err != nil {
		return nil, err
	}
	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}

	var (
		inputs   resource.PropertyMap
		failures []*pulumirpc.CheckFailure
	)
	if typ == assetToken {
		inputs, failures, err = checkAsset(olds, news)
	} else {
		inputs, failures, err = checkLineage(news)
	}
	if err != nil {
		return nil, err
	}

	out, err := marshal(inputs)
	if err != nil {
		return nil, err
	}
	return &pulumirpc.CheckResponse{Inputs: out, Failures: failures}, nil
}

func (p *Provider) Diff(ctx context.Context, req *pulumirpc.DiffRequest) (resp *pulumirpc.DiffResponse, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Diff", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	if typ == assetToken {
		return diffAsset(req)
	}
	return diffLineage(req)
}

func (p *Provider) Create(ctx context.Context, req *pulumirpc.CreateRequest) (resp *pulumirpc.CreateResponse, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Create", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	if typ == assetToken {
		return p.createAsset(ctx, c, req)
	}
	return p.createLineage(ctx, c, req)
}

func (p *Provider) Read(ctx context.Context, req *pulumirpc.ReadRequest) (resp *pulumirpc.ReadResponse, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Read", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	if typ == assetToken {
		return p.readAsset(ctx, c, req)
	}
	return p.readLineage(ctx, c, req)
}

func (p *Provider) Update(ctx context.Context, req *pulumirpc.UpdateRequest) (resp *pulumirpc.UpdateResponse, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Update", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	if typ == assetToken {
		return p.updateAsset(ctx, c, req)
	}
	return p.updateLineage(ctx, c, req)
}

func (p *Provider) Delete(ctx context.Context, req *pulumirpc.DeleteRequest) (_ *emptypb.Empty, err error) {
	urn := resource.URN(req.GetUrn())
	ctx, c := p.begin(ctx, "Delete", urn)
	defer func() { err = c.end(ctx, err) }()

	typ, err := resourceType(urn)
	if err != nil {
		return nil, err
	}
	if typ == assetToken {
		err = p.deleteAsset(ctx, c, req)
	} else {
		err = p.deleteLineage(ctx, c, req)
	}
	if err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}
