package catalog

import (
	"time"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/core/value"
)

type externalLinkPayload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon,omitempty"`
}

type sourcePayload struct {
	Name       string     `json:"name"`
	Priority   *int       `json:"priority,omitempty"`
	Properties *value.Map `json:"properties,omitempty"`
}

type environmentPayload struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Metadata *value.Map `json:"metadata,omitempty"`
}

// assetPayload is the catalog's view of an asset. The catalog calls
// services providers and has no notion of namespaces.
type assetPayload struct {
	ID            string                        `json:"id,omitempty"`
	MRN           string                        `json:"mrn,omitempty"`
	Name          string                        `json:"name"`
	Type          string                        `json:"type"`
	Description   string                        `json:"description,omitempty"`
	Providers     []string                      `json:"providers,omitempty"`
	Tags          []string                      `json:"tags,omitempty"`
	Metadata      *value.Map                    `json:"metadata,omitempty"`
	Schema        *value.Map                    `json:"schema,omitempty"`
	ExternalLinks []externalLinkPayload         `json:"external_links,omitempty"`
	Sources       []sourcePayload               `json:"sources,omitempty"`
	Environments  map[string]environmentPayload `json:"environments,omitempty"`
	CreatedAt     *time.Time                    `json:"created_at,omitempty"`
	UpdatedAt     *time.Time                    `json:"updated_at,omitempty"`
}

func newAssetPayload(ast asset.Asset) assetPayload {
	p := assetPayload{
		Name:        ast.Name,
		Type:        ast.Type.String(),
		Description: ast.Description,
		Providers:   ast.Services,
		Tags:        ast.Tags,
		Metadata:    ast.Metadata,
		Schema:      ast.Schema,
	}
	for _, l := range ast.ExternalLinks {
		p.ExternalLinks = append(p.ExternalLinks, externalLinkPayload(l))
	}
	for _, s := range ast.Sources {
		p.Sources = append(p.Sources, sourcePayload(s))
	}
	if len(ast.Environments) > 0 {
		p.Environments = make(map[string]environmentPayload, len(ast.Environments))
		for k, env := range ast.Environments {
			p.Environments[k] = environmentPayload(env)
		}
	}
	return p
}

// toAsset maps the payload back. The catalog does not keep versions so the
// returned asset carries none.
func (p assetPayload) toAsset() asset.Asset {
	ast := asset.Asset{
		ID:          p.ID,
		Name:        p.Name,
		Type:        asset.Type(p.Type),
		Namespace:   asset.DefaultNamespace,
		Description: p.Description,
		Services:    nilIfEmpty(p.Providers),
		Tags:        nilIfEmpty(p.Tags),
	}
	if p.Metadata.Len() > 0 {
		ast.Metadata = p.Metadata
	}
	if p.Schema.Len() > 0 {
		ast.Schema = p.Schema
	}
	for _, l := range p.ExternalLinks {
		ast.ExternalLinks = append(ast.ExternalLinks, asset.ExternalLink(l))
	}
	for _, s := range p.Sources {
		src := asset.Source(s)
		if src.Properties.Len() == 0 {
			src.Properties = nil
		}
		ast.Sources = append(ast.Sources, src)
	}
	if len(p.Environments) > 0 {
		ast.Environments = make(map[string]asset.Environment, len(p.Environments))
		for k, env := range p.Environments {
			e := asset.Environment(env)
			if e.Metadata.Len() == 0 {
				e.Metadata = nil
			}
			ast.Environments[k] = e
		}
	}
	if p.CreatedAt != nil {
		ast.CreatedAt = p.CreatedAt.UTC()
	}
	if p.UpdatedAt != nil {
		ast.UpdatedAt = p.UpdatedAt.UTC()
	}
	return ast.Normalize()
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

type edgePayload struct {
	ID        string     `json:"id,omitempty"`
	Source    string     `json:"source"`
	Target    string     `json:"target"`
	Type      string     `json:"type,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// toEdge maps the payload back, translating catalog MRNs with local.
func (p edgePayload) toEdge(local func(string) string) lineage.Edge {
	e := lineage.Edge{
		ID:     p.ID,
		Source: local(p.Source),
		Target: local(p.Target),
		Type:   p.Type,
	}
	if e.Type == "" {
		e.Type = lineage.TypeDirect
	}
	if p.CreatedAt != nil {
		e.CreatedAt = p.CreatedAt.UTC()
	}
	return e
}

type edgeListPayload struct {
	Edges []edgePayload `json:"edges"`
}
