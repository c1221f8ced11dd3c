package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
)

// LineageRepository stores direct lineage edges in the catalog. Edges use
// local MRNs while the catalog only knows the MRNs it issued itself, so every
// endpoint is looked up before it is sent and mapped back on the way out.
type LineageRepository struct {
	client *Client

	mu    sync.RWMutex
	local map[string]string // catalog mrn -> local mrn
}

func NewLineageRepository(c *Client) *LineageRepository {
	return &LineageRepository{client: c, local: map[string]string{}}
}

func (r *LineageRepository) GetByID(ctx context.Context, id string) (lineage.Edge, error) {
	var p edgePayload
	err := r.client.do(ctx, operation{
		ID:     "getLineage",
		Method: http.MethodGet,
		Path:   "/lineage/direct/{id}",
		Params: map[string]string{"id": id},
	}, &p)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return lineage.Edge{}, lineage.NotFoundError{EdgeID: id}
		}
		return lineage.Edge{}, unavailable(err)
	}
	return p.toEdge(r.localMRN), nil
}

func (r *LineageRepository) GetByPair(ctx context.Context, source, target string) (lineage.Edge, error) {
	edges, err := r.List(ctx, lineage.Filter{Source: source, Target: target})
	if err != nil {
		return lineage.Edge{}, err
	}
	for _, e := range edges {
		if e.Source == source && e.Target == target {
			return e, nil
		}
	}
	return lineage.Edge{}, lineage.NotFoundError{Source: source, Target: target}
}

// Insert creates the edge. The catalog assigns the id, so e.ID is not sent.
func (r *LineageRepository) Insert(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	in, err := r.remoteEdge(ctx, e)
	if err != nil {
		return lineage.Edge{}, err
	}

	var p edgePayload
	err = r.client.do(ctx, operation{
		ID:     "createLineage",
		Method: http.MethodPost,
		Path:   "/lineage/direct",
		Body:   in,
	}, &p)
	if err != nil {
		return lineage.Edge{}, r.writeError(e, err)
	}
	created := p.toEdge(r.localMRN)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = e.CreatedAt
	}
	return created, nil
}

func (r *LineageRepository) Update(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	in, err := r.remoteEdge(ctx, e)
	if err != nil {
		return lineage.Edge{}, err
	}

	var p edgePayload
	err = r.client.do(ctx, operation{
		ID:     "updateLineage",
		Method: http.MethodPut,
		Path:   "/lineage/direct/{id}",
		Params: map[string]string{"id": e.ID},
		Body:   in,
	}, &p)
	if err != nil {
		return lineage.Edge{}, r.writeError(e, err)
	}
	updated := p.toEdge(r.localMRN)
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = e.CreatedAt
	}
	return updated, nil
}

func (r *LineageRepository) DeleteByID(ctx context.Context, id string) error {
	err := r.client.do(ctx, operation{
		ID:     "deleteLineage",
		Method: http.MethodDelete,
		Path:   "/lineage/direct/{id}",
		Params: map[string]string{"id": id},
	}, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return lineage.NotFoundError{EdgeID: id}
		}
		return unavailable(err)
	}
	return nil
}

// List returns no edges when a filter endpoint has no catalog asset.
func (r *LineageRepository) List(ctx context.Context, flt lineage.Filter) ([]lineage.Edge, error) {
	query := url.Values{}
	for _, f := range []struct{ key, mrn string }{{"source", flt.Source}, {"target", flt.Target}} {
		if f.mrn == "" {
			continue
		}
		remote, err := r.remoteMRN(ctx, f.key, f.mrn)
		if err != nil {
			if errors.As(err, new(lineage.UnresolvedReferenceError)) {
				return []lineage.Edge{}, nil
			}
			return nil, err
		}
		query.Set(f.key, remote)
	}

	var p edgeListPayload
	err := r.client.do(ctx, operation{
		ID:     "listLineage",
		Method: http.MethodGet,
		Path:   "/lineage/direct",
		Query:  query,
	}, &p)
	if err != nil {
		return nil, unavailable(err)
	}

	edges := make([]lineage.Edge, 0, len(p.Edges))
	for _, e := range p.Edges {
		edges = append(edges, e.toEdge(r.localMRN))
	}
	return edges, nil
}

func (r *LineageRepository) remoteEdge(ctx context.Context, e lineage.Edge) (edgePayload, error) {
	source, err := r.remoteMRN(ctx, "source", e.Source)
	if err != nil {
		return edgePayload{}, err
	}
	target, err := r.remoteMRN(ctx, "target", e.Target)
	if err != nil {
		return edgePayload{}, err
	}
	return edgePayload{Source: source, Target: target}, nil
}

// remoteMRN returns the MRN the catalog issued for the asset behind mrn.
// It is looked up on every call since a replaced asset may get a new one.
func (r *LineageRepository) remoteMRN(ctx context.Context, role, mrn string) (string, error) {
	p, err := lookupAsset(ctx, r.client, mrn)
	if err != nil {
		if errors.As(err, new(asset.NotFoundError)) {
			return "", lineage.UnresolvedReferenceError{Role: role, MRN: mrn}
		}
		return "", err
	}

	remote := p.MRN
	if remote == "" {
		remote = mrn
	}
	r.mu.Lock()
	r.local[remote] = mrn
	r.mu.Unlock()
	return remote, nil
}

// localMRN maps a catalog MRN back. MRNs never seen in a lookup are kept.
func (r *LineageRepository) localMRN(remote string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if mrn, ok := r.local[remote]; ok {
		return mrn
	}
	return remote
}

func (r *LineageRepository) writeError(e lineage.Edge, err error) error {
	switch statusCode(err) {
	case http.StatusNotFound:
		return lineage.NotFoundError{EdgeID: e.ID}
	case http.StatusConflict:
		return lineage.AlreadyExistsError{Source: e.Source, Target: e.Target}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return lineage.InvalidError{Reason: err.Error()}
	}
	return unavailable(err)
}
