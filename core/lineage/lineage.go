package lineage

import (
	"context"
	"time"
)

// TypeDirect is the only edge type the catalog reports today.
const TypeDirect = "DIRECT"

// Edge is a directed data flow from the Source asset to the Target asset,
// both referenced by MRN.
type Edge struct {
	ID        string    `json:"resourceId,omitempty"`
	Source    string    `json:"source" validate:"required"`
	Target    string    `json:"target" validate:"required"`
	Type      string    `json:"type,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Filter struct {
	Source string
	Target string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (Edge, error)
	GetByPair(ctx context.Context, source, target string) (Edge, error)
	// Insert returns AlreadyExistsError when the pair is already stored.
	Insert(ctx context.Context, e Edge) (Edge, error)
	// Update rewrites the endpoints of the edge with e.ID.
	Update(ctx context.Context, e Edge) (Edge, error)
	DeleteByID(ctx context.Context, id string) error
	List(ctx context.Context, flt Filter) ([]Edge, error)
}

// AssetResolver tells whether an MRN refers to a live asset.
type AssetResolver interface {
	Exists(ctx context.Context, mrn string) (bool, error)
}
