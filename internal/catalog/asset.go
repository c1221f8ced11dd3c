package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/validator"
)

// AssetRepository stores assets in the catalog. The catalog assigns its own
// ids and keeps no versions or namespaces, so only the default namespace is
// accepted.
type AssetRepository struct {
	client *Client
}

func NewAssetRepository(c *Client) *AssetRepository {
	return &AssetRepository{client: c}
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (asset.Asset, error) {
	var p assetPayload
	err := r.client.do(ctx, operation{
		ID:     "getAssetByID",
		Method: http.MethodGet,
		Path:   "/assets/{id}",
		Params: map[string]string{"id": id},
	}, &p)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return asset.Asset{}, asset.NotFoundError{AssetID: id}
		}
		return asset.Asset{}, unavailable(err)
	}
	return p.toAsset(), nil
}

func (r *AssetRepository) GetByMRN(ctx context.Context, mrn string) (asset.Asset, error) {
	p, err := lookupAsset(ctx, r.client, mrn)
	if err != nil {
		return asset.Asset{}, err
	}
	return p.toAsset(), nil
}

// lookupAsset finds the catalog asset behind a local MRN. Assets outside
// the default namespace cannot exist in the catalog.
func lookupAsset(ctx context.Context, c *Client, mrn string) (assetPayload, error) {
	ns, typ, name, err := asset.ParseMRN(mrn)
	if err != nil {
		return assetPayload{}, err
	}
	if ns != asset.DefaultNamespace {
		return assetPayload{}, asset.NotFoundError{MRN: mrn}
	}

	var p assetPayload
	err = c.do(ctx, operation{
		ID:     "lookupAsset",
		Method: http.MethodGet,
		Path:   "/assets/lookup/{type}/{name}",
		Params: map[string]string{"type": typ, "name": name},
	}, &p)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return assetPayload{}, asset.NotFoundError{MRN: mrn}
		}
		return assetPayload{}, unavailable(err)
	}
	return p, nil
}

func (r *AssetRepository) Insert(ctx context.Context, ast asset.Asset) (asset.Asset, error) {
	if err := checkNamespace(ast); err != nil {
		return asset.Asset{}, err
	}

	var p assetPayload
	err := r.client.do(ctx, operation{
		ID:     "createAsset",
		Method: http.MethodPost,
		Path:   "/assets",
		Body:   newAssetPayload(ast),
	}, &p)
	if err != nil {
		return asset.Asset{}, r.writeError(ast, err)
	}

	created := p.toAsset()
	created.Version = ast.Version
	return created, nil
}

// Update ignores expectedVersion because the catalog has nothing to compare
// it with.
func (r *AssetRepository) Update(ctx context.Context, ast asset.Asset, _ string) (asset.Asset, error) {
	if err := checkNamespace(ast); err != nil {
		return asset.Asset{}, err
	}

	var p assetPayload
	err := r.client.do(ctx, operation{
		ID:     "updateAsset",
		Method: http.MethodPut,
		Path:   "/assets/{id}",
		Params: map[string]string{"id": ast.ID},
		Body:   newAssetPayload(ast),
	}, &p)
	if err != nil {
		return asset.Asset{}, r.writeError(ast, err)
	}

	updated := p.toAsset()
	updated.Version = ast.Version
	return updated, nil
}

func (r *AssetRepository) DeleteByID(ctx context.Context, id string) error {
	err := r.client.do(ctx, operation{
		ID:     "deleteAsset",
		Method: http.MethodDelete,
		Path:   "/assets/{id}",
		Params: map[string]string{"id": id},
	}, nil)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return asset.NotFoundError{AssetID: id}
		}
		return unavailable(err)
	}
	return nil
}

func (r *AssetRepository) writeError(ast asset.Asset, err error) error {
	switch statusCode(err) {
	case http.StatusNotFound:
		return asset.NotFoundError{AssetID: ast.ID}
	case http.StatusConflict:
		return asset.AlreadyExistsError{MRN: ast.MRN}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return asset.InvalidError{AssetID: ast.ID, Fields: []validator.FieldError{{
			Rule:    "catalog",
			Message: err.Error(),
		}}}
	}
	return unavailable(err)
}

func checkNamespace(ast asset.Asset) error {
	ns, _, _ := ast.Identity()
	if ns == asset.DefaultNamespace {
		return nil
	}
	return asset.InvalidError{AssetID: ast.ID, Fields: []validator.FieldError{{
		Field:   "namespace",
		Rule:    "eq",
		Message: fmt.Sprintf("must be %q when assets are stored in the catalog", asset.DefaultNamespace),
	}}}
}
