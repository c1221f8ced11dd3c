package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/jmoiron/sqlx"
)

var assetColumns = []string{
	"id", "mrn", "namespace", "type", "name", "description",
	"services", "tags", "metadata", "asset_schema", "external_links",
	"sources", "environments", "version", "created_at", "updated_at",
}

// AssetRepository stores assets in the assets table.
type AssetRepository struct {
	client *Client
}

func NewAssetRepository(c *Client) (*AssetRepository, error) {
	if c == nil {
		return nil, errNilPostgresClient
	}
	return &AssetRepository{client: c}, nil
}

func (r *AssetRepository) GetByID(ctx context.Context, id string) (asset.Asset, error) {
	if !isValidUUID(id) {
		return asset.Asset{}, asset.NotFoundError{AssetID: id}
	}
	ast, err := r.getWithPredicate(ctx, sq.Eq{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, asset.NotFoundError{AssetID: id}
	}
	return ast, err
}

func (r *AssetRepository) GetByMRN(ctx context.Context, mrn string) (asset.Asset, error) {
	ast, err := r.getWithPredicate(ctx, sq.Eq{"mrn": mrn})
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Asset{}, asset.NotFoundError{MRN: mrn}
	}
	return ast, err
}

func (r *AssetRepository) getWithPredicate(ctx context.Context, pred sq.Eq) (asset.Asset, error) {
	query, args, err := sq.Select(assetColumns...).
		From("assets").
		Where(pred).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return asset.Asset{}, fmt.Errorf("error building query: %w", err)
	}

	var am AssetModel
	if err := r.client.GetContext(ctx, &am, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return asset.Asset{}, err
		}
		return asset.Asset{}, classify(ctx, "get asset", err)
	}
	return am.toAsset()
}

// Insert adds a new row. A clash on id or mrn is reported as
// AlreadyExistsError.
func (r *AssetRepository) Insert(ctx context.Context, ast asset.Asset) (asset.Asset, error) {
	if !isValidUUID(ast.ID) {
		return asset.Asset{}, asset.InvalidError{AssetID: ast.ID}
	}
	am, err := newAssetModel(ast)
	if err != nil {
		return asset.Asset{}, err
	}

	query, args, err := sq.Insert("assets").
		Columns(assetColumns...).
		Values(am.ID, am.MRN, am.Namespace, am.Type, am.Name, am.Description,
			am.Services, am.Tags, am.Metadata, am.Schema, am.ExternalLinks,
			am.Sources, am.Environments, am.Version, am.CreatedAt, am.UpdatedAt).
		Suffix("ON CONFLICT DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return asset.Asset{}, fmt.Errorf("error building insert query: %w", err)
	}

	err = r.client.RunWithinTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return classify(ctx, "insert asset", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("error getting affected rows: %w", err)
		}
		if affected == 0 {
			return asset.AlreadyExistsError{MRN: ast.MRN}
		}
		return nil
	})
	if err != nil {
		return asset.Asset{}, err
	}
	return ast, nil
}

// Update rewrites the mutable columns when the stored version still equals
// expectedVersion.
func (r *AssetRepository) Update(ctx context.Context, ast asset.Asset, expectedVersion string) (asset.Asset, error) {
	if !isValidUUID(ast.ID) {
		return asset.Asset{}, asset.NotFoundError{AssetID: ast.ID}
	}
	am, err := newAssetModel(ast)
	if err != nil {
		return asset.Asset{}, err
	}

	pred := sq.Eq{"id": am.ID}
	if expectedVersion != "" {
		pred["version"] = expectedVersion
	}
	query, args, err := sq.Update("assets").
		SetMap(map[string]interface{}{
			"description":    am.Description,
			"services":       am.Services,
			"tags":           am.Tags,
			"metadata":       am.Metadata,
			"asset_schema":   am.Schema,
			"external_links": am.ExternalLinks,
			"sources":        am.Sources,
			"environments":   am.Environments,
			"version":        am.Version,
			"updated_at":     am.UpdatedAt,
		}).
		Where(pred).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return asset.Asset{}, fmt.Errorf("error building update query: %w", err)
	}

	err = r.client.RunWithinTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return classify(ctx, "update asset", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("error getting affected rows: %w", err)
		}
		if affected > 0 {
			return nil
		}

		var stored string
		err = tx.GetContext(ctx, &stored, `SELECT version FROM assets WHERE id = $1`, am.ID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return asset.NotFoundError{AssetID: am.ID}
		case err != nil:
			return classify(ctx, "update asset", err)
		}
		return asset.VersionConflictError{AssetID: am.ID, Expected: expectedVersion, Actual: stored}
	})
	if err != nil {
		return asset.Asset{}, err
	}
	return ast, nil
}

// DeleteByID removes asset using its ID
func (r *AssetRepository) DeleteByID(ctx context.Context, id string) error {
	if !isValidUUID(id) {
		return asset.NotFoundError{AssetID: id}
	}

	query, args, err := sq.Delete("assets").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building query: %w", err)
	}

	res, err := r.client.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(ctx, fmt.Sprintf("delete asset %q", id), err)
	}
	affectedRows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting affected rows: %w", err)
	}
	if affectedRows == 0 {
		return asset.NotFoundError{AssetID: id}
	}
	return nil
}
