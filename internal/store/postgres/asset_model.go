package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/jmoiron/sqlx/types"
)

type AssetModel struct {
	ID            string         `db:"id"`
	MRN           string         `db:"mrn"`
	Namespace     string         `db:"namespace"`
	Type          string         `db:"type"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	Services      types.JSONText `db:"services"`
	Tags          types.JSONText `db:"tags"`
	Metadata      types.JSONText `db:"metadata"`
	Schema        types.JSONText `db:"asset_schema"`
	ExternalLinks types.JSONText `db:"external_links"`
	Sources       types.JSONText `db:"sources"`
	Environments  types.JSONText `db:"environments"`
	Version       string         `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func newAssetModel(ast asset.Asset) (AssetModel, error) {
	m := AssetModel{
		ID:          ast.ID,
		MRN:         ast.MRN,
		Namespace:   ast.Namespace,
		Type:        ast.Type.String(),
		Name:        ast.Name,
		Description: ast.Description,
		Version:     ast.Version,
		CreatedAt:   ast.CreatedAt,
		UpdatedAt:   ast.UpdatedAt,
	}

	fields := []struct {
		dest  *types.JSONText
		name  string
		value interface{}
	}{
		{&m.Services, "services", nonNilStrings(ast.Services)},
		{&m.Tags, "tags", nonNilStrings(ast.Tags)},
		{&m.Metadata, "metadata", ast.Metadata},
		{&m.Schema, "schema", ast.Schema},
		{&m.ExternalLinks, "externalLinks", nonNilLinks(ast.ExternalLinks)},
		{&m.Sources, "sources", nonNilSources(ast.Sources)},
		{&m.Environments, "environments", nonNilEnvironments(ast.Environments)},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.value)
		if err != nil {
			return AssetModel{}, fmt.Errorf("encode %s: %w", f.name, err)
		}
		*f.dest = b
	}
	return m, nil
}

func (m AssetModel) toAsset() (asset.Asset, error) {
	ast := asset.Asset{
		ID:          m.ID,
		MRN:         m.MRN,
		Namespace:   m.Namespace,
		Type:        asset.Type(m.Type),
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}

	fields := []struct {
		src  types.JSONText
		name string
		dest interface{}
	}{
		{m.Services, "services", &ast.Services},
		{m.Tags, "tags", &ast.Tags},
		{m.Metadata, "metadata", &ast.Metadata},
		{m.Schema, "schema", &ast.Schema},
		{m.ExternalLinks, "externalLinks", &ast.ExternalLinks},
		{m.Sources, "sources", &ast.Sources},
		{m.Environments, "environments", &ast.Environments},
	}
	for _, f := range fields {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dest); err != nil {
			return asset.Asset{}, fmt.Errorf("decode %s of asset %q: %w", f.name, m.ID, err)
		}
	}
	if ast.Metadata.Len() == 0 {
		ast.Metadata = nil
	}
	if ast.Schema.Len() == 0 {
		ast.Schema = nil
	}
	if len(ast.Services) == 0 {
		ast.Services = nil
	}
	if len(ast.Tags) == 0 {
		ast.Tags = nil
	}
	if len(ast.ExternalLinks) == 0 {
		ast.ExternalLinks = nil
	}
	if len(ast.Sources) == 0 {
		ast.Sources = nil
	}
	if len(ast.Environments) == 0 {
		ast.Environments = nil
	}
	return ast, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilLinks(l []asset.ExternalLink) []asset.ExternalLink {
	if l == nil {
		return []asset.ExternalLink{}
	}
	return l
}

func nonNilSources(s []asset.Source) []asset.Source {
	if s == nil {
		return []asset.Source{}
	}
	return s
}

func nonNilEnvironments(e map[string]asset.Environment) map[string]asset.Environment {
	if e == nil {
		return map[string]asset.Environment{}
	}
	return e
}
