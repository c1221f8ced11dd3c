package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/pulumi-marmot/core/lineage"
)

var lineageColumns = []string{"id", "source", "target", "type", "created_at"}

// LineageRepository stores directed edges in the lineage_edges table.
type LineageRepository struct {
	client *Client
}

func NewLineageRepository(client *Client) (*LineageRepository, error) {
	if client == nil {
		return nil, errNilPostgresClient
	}
	return &LineageRepository{client: client}, nil
}

func (r *LineageRepository) GetByID(ctx context.Context, id string) (lineage.Edge, error) {
	if !isValidUUID(id) {
		return lineage.Edge{}, lineage.NotFoundError{EdgeID: id}
	}
	e, err := r.getWithPredicate(ctx, sq.Eq{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return lineage.Edge{}, lineage.NotFoundError{EdgeID: id}
	}
	return e, err
}

func (r *LineageRepository) GetByPair(ctx context.Context, source, target string) (lineage.Edge, error) {
	e, err := r.getWithPredicate(ctx, sq.Eq{"source": source, "target": target})
	if errors.Is(err, sql.ErrNoRows) {
		return lineage.Edge{}, lineage.NotFoundError{Source: source, Target: target}
	}
	return e, err
}

func (r *LineageRepository) getWithPredicate(ctx context.Context, pred sq.Eq) (lineage.Edge, error) {
	query, args, err := sq.Select(lineageColumns...).
		From("lineage_edges").
		Where(pred).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return lineage.Edge{}, fmt.Errorf("error building query: %w", err)
	}

	var lm LineageModel
	if err := r.client.GetContext(ctx, &lm, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lineage.Edge{}, err
		}
		return lineage.Edge{}, classify(ctx, "get lineage", err)
	}
	return lm.toEdge(), nil
}

// Insert stores the edge unless the (source, target) pair is taken, in which
// case AlreadyExistsError is returned.
func (r *LineageRepository) Insert(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	if !isValidUUID(e.ID) {
		return lineage.Edge{}, lineage.InvalidError{Field: "id", Reason: fmt.Sprintf("%q is not a uuid", e.ID)}
	}
	lm := newLineageModel(e)

	query, args, err := sq.Insert("lineage_edges").
		Columns(lineageColumns...).
		Values(lm.ID, lm.Source, lm.Target, lm.Type, lm.CreatedAt).
		Suffix("ON CONFLICT (source, target) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return lineage.Edge{}, fmt.Errorf("error building insert query: %w", err)
	}

	res, err := r.client.ExecContext(ctx, query, args...)
	if err != nil {
		err = classify(ctx, "insert lineage", err)
		if errors.Is(err, errCheckViolation) {
			return lineage.Edge{}, lineage.InvalidError{Field: "target", Reason: "source and target must differ"}
		}
		return lineage.Edge{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return lineage.Edge{}, fmt.Errorf("error getting affected rows: %w", err)
	}
	if affected == 0 {
		return lineage.Edge{}, lineage.AlreadyExistsError{Source: e.Source, Target: e.Target}
	}
	return e, nil
}

func (r *LineageRepository) Update(ctx context.Context, e lineage.Edge) (lineage.Edge, error) {
	if !isValidUUID(e.ID) {
		return lineage.Edge{}, lineage.NotFoundError{EdgeID: e.ID}
	}

	query, args, err := sq.Update("lineage_edges").
		Set("source", e.Source).
		Set("target", e.Target).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": e.ID}).
		Suffix("RETURNING " + strings.Join(lineageColumns, ", ")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return lineage.Edge{}, fmt.Errorf("error building update query: %w", err)
	}

	var lm LineageModel
	if err := r.client.GetContext(ctx, &lm, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lineage.Edge{}, lineage.NotFoundError{EdgeID: e.ID}
		}
		err = classify(ctx, "update lineage", err)
		switch {
		case errors.Is(err, errDuplicateKey):
			return lineage.Edge{}, lineage.AlreadyExistsError{Source: e.Source, Target: e.Target}
		case errors.Is(err, errCheckViolation):
			return lineage.Edge{}, lineage.InvalidError{Field: "target", Reason: "source and target must differ"}
		}
		return lineage.Edge{}, err
	}
	return lm.toEdge(), nil
}

func (r *LineageRepository) DeleteByID(ctx context.Context, id string) error {
	if !isValidUUID(id) {
		return lineage.NotFoundError{EdgeID: id}
	}

	query, args, err := sq.Delete("lineage_edges").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("error building query: %w", err)
	}

	res, err := r.client.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(ctx, fmt.Sprintf("delete lineage %q", id), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting affected rows: %w", err)
	}
	if affected == 0 {
		return lineage.NotFoundError{EdgeID: id}
	}
	return nil
}

// List returns edges ordered by source then target. Empty filter fields
// match everything.
func (r *LineageRepository) List(ctx context.Context, flt lineage.Filter) ([]lineage.Edge, error) {
	builder := sq.Select(lineageColumns...).
		From("lineage_edges").
		OrderBy("source", "target")
	if flt.Source != "" {
		builder = builder.Where(sq.Eq{"source": flt.Source})
	}
	if flt.Target != "" {
		builder = builder.Where(sq.Eq{"target": flt.Target})
	}
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error building query: %w", err)
	}

	var lms []LineageModel
	if err := r.client.SelectContext(ctx, &lms, query, args...); err != nil {
		return nil, classify(ctx, "list lineage", err)
	}

	edges := make([]lineage.Edge, 0, len(lms))
	for _, lm := range lms {
		edges = append(edges, lm.toEdge())
	}
	return edges, nil
}
