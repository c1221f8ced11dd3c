package postgres

import (
	"time"

	"github.com/goto/pulumi-marmot/core/lineage"
)

type LineageModel struct {
	ID        string    `db:"id"`
	Source    string    `db:"source"`
	Target    string    `db:"target"`
	Type      string    `db:"type"`
	CreatedAt time.Time `db:"created_at"`
}

func newLineageModel(e lineage.Edge) LineageModel {
	return LineageModel{
		ID:        e.ID,
		Source:    e.Source,
		Target:    e.Target,
		Type:      e.Type,
		CreatedAt: e.CreatedAt,
	}
}

func (m LineageModel) toEdge() lineage.Edge {
	return lineage.Edge{
		ID:        m.ID,
		Source:    m.Source,
		Target:    m.Target,
		Type:      m.Type,
		CreatedAt: m.CreatedAt.UTC(),
	}
}
