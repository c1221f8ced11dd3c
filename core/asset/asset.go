package asset

import (
	"context"
	"time"

	"github.com/goto/pulumi-marmot/core/value"
)

const DefaultNamespace = "default"

type Repository interface {
	GetByID(ctx context.Context, id string) (Asset, error)
	GetByMRN(ctx context.Context, mrn string) (Asset, error)
	// Insert stores a new asset. Backends that assign their own ids return
	// the stored asset with that id.
	Insert(ctx context.Context, ast Asset) (Asset, error)
	// Update replaces the asset with the same ID. When the backend tracks
	// versions it must reject the write with VersionConflictError if the
	// stored version is no longer expectedVersion.
	Update(ctx context.Context, ast Asset, expectedVersion string) (Asset, error)
	DeleteByID(ctx context.Context, id string) error
}

// Asset is a data catalog entry such as a topic, table or bucket.
type Asset struct {
	ID            string                 `json:"resourceId,omitempty"`
	MRN           string                 `json:"mrn,omitempty"`
	Name          string                 `json:"name" validate:"required"`
	Type          Type                   `json:"type" validate:"required,excludesall=/"`
	Namespace     string                 `json:"namespace,omitempty" validate:"omitempty,excludesall=/"`
	Description   string                 `json:"description,omitempty"`
	Services      []string               `json:"services,omitempty"`
	Tags          []string               `json:"tags,omitempty"`
	Metadata      *value.Map             `json:"metadata,omitempty"`
	Schema        *value.Map             `json:"schema,omitempty"`
	ExternalLinks []ExternalLink         `json:"externalLinks,omitempty" validate:"dive"`
	Sources       []Source               `json:"sources,omitempty" validate:"dive"`
	Environments  map[string]Environment `json:"environments,omitempty" validate:"dive"`
	Version       string                 `json:"version,omitempty"`
	CreatedAt     time.Time              `json:"createdAt,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt,omitempty"`
}

type ExternalLink struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
	Icon string `json:"icon,omitempty"`
}

type Source struct {
	Name       string     `json:"name" validate:"required"`
	Priority   *int       `json:"priority,omitempty"`
	Properties *value.Map `json:"properties,omitempty"`
}

type Environment struct {
	Name     string     `json:"name" validate:"required"`
	Path     string     `json:"path" validate:"required"`
	Metadata *value.Map `json:"metadata,omitempty"`
}

// Normalize fills in the default namespace and derives the MRN.
func (a Asset) Normalize() Asset {
	if a.Namespace == "" {
		a.Namespace = DefaultNamespace
	}
	a.MRN = BuildMRN(a.Namespace, a.Type, a.Name)
	return a
}

// Identity returns the fields that make up the MRN.
func (a Asset) Identity() (namespace string, typ Type, name string) {
	ns := a.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns, a.Type, a.Name
}

// Clone returns a deep copy so callers can mutate the result freely.
func (a Asset) Clone() Asset {
	out := a
	out.Services = cloneStrings(a.Services)
	out.Tags = cloneStrings(a.Tags)
	if a.Metadata != nil {
		out.Metadata = a.Metadata.Clone()
	}
	if a.Schema != nil {
		out.Schema = a.Schema.Clone()
	}
	if a.ExternalLinks != nil {
		out.ExternalLinks = append([]ExternalLink(nil), a.ExternalLinks...)
	}
	if a.Sources != nil {
		out.Sources = make([]Source, len(a.Sources))
		for i, s := range a.Sources {
			out.Sources[i] = s
			if s.Priority != nil {
				p := *s.Priority
				out.Sources[i].Priority = &p
			}
			if s.Properties != nil {
				out.Sources[i].Properties = s.Properties.Clone()
			}
		}
	}
	if a.Environments != nil {
		out.Environments = make(map[string]Environment, len(a.Environments))
		for k, env := range a.Environments {
			if env.Metadata != nil {
				env.Metadata = env.Metadata.Clone()
			}
			out.Environments[k] = env
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
