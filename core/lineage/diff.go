package lineage

import (
	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/pulumi-marmot/core/value"
)

// DiffFields lists the input fields of an edge.
var DiffFields = []string{"source", "target"}

// Diff tells which endpoints changed. Edges are always updated in place,
// so no change requires a replacement.
type Diff struct {
	SourceChanged bool
	TargetChanged bool

	prior  Edge
	source string
	target string
}

func Compare(prior Edge, source, target string) Diff {
	return Diff{
		SourceChanged: prior.Source != source,
		TargetChanged: prior.Target != target,
		prior:         prior,
		source:        source,
		target:        target,
	}
}

func (d Diff) HasChanges() bool {
	return d.SourceChanged || d.TargetChanged
}

func (d Diff) Result() change.Result {
	var cl change.Changelog
	if d.SourceChanged {
		cl = append(cl, change.Change{
			Path: []string{"source"},
			Kind: change.Modify,
			From: value.String(d.prior.Source),
			To:   value.String(d.source),
		})
	}
	if d.TargetChanged {
		cl = append(cl, change.Change{
			Path: []string{"target"},
			Kind: change.Modify,
			From: value.String(d.prior.Target),
			To:   value.String(d.target),
		})
	}
	return change.NewResult(DiffFields, cl)
}
