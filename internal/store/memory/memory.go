// Package memory keeps assets and lineage edges in process memory. It backs
// local previews and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
)

type AssetRepository struct {
	mu    sync.RWMutex
	byID  map[string]asset.Asset
	byMRN map[string]string
}

func NewAssetRepository() *AssetRepository {
	return &AssetRepository{
		byID:  make(map[string]asset.Asset),
		byMRN: make(map[string]string),
	}
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (asset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return asset.Asset{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ast, ok := r.byID[id]
	if !ok {
		return asset.Asset{}, asset.NotFoundError{AssetID: id}
	}
	return ast.Clone(), nil
}

func (r *AssetRepository) GetByMRN(ctx context.Context, mrn string) (asset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return asset.Asset{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMRN[mrn]
	if !ok {
		return asset.Asset{}, asset.NotFoundError{MRN: mrn}
	}
	return r.byID[id].Clone(), nil
}

func (r *AssetRepository) Insert(ctx context.Context, ast asset.Asset) (asset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return asset.Asset{}, err
	}
	if ast.ID == "" {
		return asset.Asset{}, asset.ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byMRN[ast.MRN]; ok {
		return asset.Asset{}, asset.AlreadyExistsError{MRN: ast.MRN, ExistingID: id}
	}
	if _, ok := r.byID[ast.ID]; ok {
		return asset.Asset{}, asset.AlreadyExistsError{MRN: ast.MRN, ExistingID: ast.ID}
	}
	r.byID[ast.ID] = ast.Clone()
	r.byMRN[ast.MRN] = ast.ID
	return ast.Clone(), nil
}

func (r *AssetRepository) Update(ctx context.Context, ast asset.Asset, expectedVersion string) (asset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return asset.Asset{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[ast.ID]
	if !ok {
		return asset.Asset{}, asset.NotFoundError{AssetID: ast.ID}
	}
	if expectedVersion != "" && current.Version != expectedVersion {
		return asset.Asset{}, asset.VersionConflictError{AssetID: ast.ID, Expected: expectedVersion, Actual: current.Version}
	}
	if current.MRN != ast.MRN {
		return asset.Asset{}, asset.ImmutableFieldError{AssetID: ast.ID, Fields: []string{"mrn"}}
	}
	r.byID[ast.ID] = ast.Clone()
	return ast.Clone(), nil
}

func (r *AssetRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ast, ok := r.byID[id]
	if !ok {
		return asset.NotFoundError{AssetID: id}
	}
	delete(r.byID, id)
	delete(r.byMRN, ast.MRN)
	return nil
}

type pair struct {
	source, target string
}

type LineageRepository struct {
	mu     sync.RWMutex
	byID   map[string]lineage.Edge
	byPair map[pair]string
}

func NewLineageRepository() *LineageRepository {
	return &LineageRepository{
		byID:   make(map[string]lineage.Edge),
		byPair: make(map[pair]string),
	}
}

func (r *LineageRepository) GetByID(ctx context.Context, id string) (lineage.Edge, error) {
	if err := ctx.Err(); err != nil {
		return lineage.Edge{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return lineage.Edge{}, lineage.NotFoundError{EdgeID: id}
	}
	return e, nil
}

func (r *LineageRepository) GetByPair(ctx context.Context, source, target string) (lineage.Edge, error) {
	if err := ctx.Err(); err != nil {
		return lineage.Edge{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[pair{source, target}]
	if !ok {
		return lineage.Edge{}, lineage.NotFoundError{Source: source, Target: target}
	}
	return r.byID[id], nil
}

func (r *LineageRepository) Insert(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	if err := ctx.Err(); err != nil {
		return lineage.Edge{}, err
	}
	if e.ID == "" {
		return lineage.Edge{}, lineage.ErrEmptyID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pair{e.Source, e.Target}
	if id, ok := r.byPair[key]; ok {
		return lineage.Edge{}, lineage.AlreadyExistsError{Source: e.Source, Target: e.Target, ExistingID: id}
	}
	r.byID[e.ID] = e
	r.byPair[key] = e.ID
	return e, nil
}

func (r *LineageRepository) Update(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	if err := ctx.Err(); err != nil {
		return lineage.Edge{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[e.ID]
	if !ok {
		return lineage.Edge{}, lineage.NotFoundError{EdgeID: e.ID}
	}
	key := pair{e.Source, e.Target}
	if id, ok := r.byPair[key]; ok && id != e.ID {
		return lineage.Edge{}, lineage.AlreadyExistsError{Source: e.Source, Target: e.Target, ExistingID: id}
	}
	delete(r.byPair, pair{current.Source, current.Target})
	r.byID[e.ID] = e
	r.byPair[key] = e.ID
	return e, nil
}

func (r *LineageRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return lineage.NotFoundError{EdgeID: id}
	}
	delete(r.byID, id)
	delete(r.byPair, pair{e.Source, e.Target})
	return nil
}

func (r *LineageRepository) List(ctx context.Context, flt lineage.Filter) ([]lineage.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	edges := make([]lineage.Edge, 0, len(r.byID))
	for _, e := range r.byID {
		if flt.Source != "" && e.Source != flt.Source {
			continue
		}
		if flt.Target != "" && e.Target != flt.Target {
			continue
		}
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges, nil
}
