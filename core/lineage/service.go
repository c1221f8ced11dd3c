package lineage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/pkg/keylock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Service struct {
	lineageRepository Repository
	resolver          AssetResolver
	locks             *keylock.Locker
	now               func() time.Time
	newID             func() string

	lineageOpCounter metric.Int64Counter
}

type ServiceDeps struct {
	LineageRepo Repository
	Resolver    AssetResolver
	Locker      *keylock.Locker
	Clock       func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	lineageOpCounter, err := otel.Meter("github.com/goto/pulumi-marmot/core/lineage").
		Int64Counter("marmot.lineage.operation")
	if err != nil {
		otel.Handle(err)
	}

	locks := deps.Locker
	if locks == nil {
		locks = keylock.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		lineageRepository: deps.LineageRepo,
		resolver:          deps.Resolver,
		locks:             locks,
		now:               clock,
		newID:             uuid.NewString,

		lineageOpCounter: lineageOpCounter,
	}
}

// Validate checks the endpoints without resolving them.
func (s *Service) Validate(source, target string) error {
	return Validate(source, target)
}

// Validate checks that both endpoints are well formed MRNs of distinct
// assets.
func Validate(source, target string) error {
	if source == "" {
		return InvalidError{Field: "source", Reason: "is required"}
	}
	if target == "" {
		return InvalidError{Field: "target", Reason: "is required"}
	}
	if _, _, _, err := asset.ParseMRN(source); err != nil {
		return InvalidError{Field: "source", Reason: err.Error()}
	}
	if _, _, _, err := asset.ParseMRN(target); err != nil {
		return InvalidError{Field: "target", Reason: err.Error()}
	}
	if source == target {
		return InvalidError{Reason: fmt.Sprintf("source and target are the same asset %s", source)}
	}
	return nil
}

// Create links source to target. Creating a pair that already exists
// returns the stored edge.
func (s *Service) Create(ctx context.Context, source, target string) (edge Edge, err error) {
	defer func() {
		s.instrumentLineageOp(ctx, "Create", err)
	}()

	if err := s.Validate(source, target); err != nil {
		return Edge{}, err
	}
	if err := s.resolve(ctx, source, target); err != nil {
		return Edge{}, err
	}

	unlock, err := s.locks.Lock(ctx, pairKey(source, target))
	if err != nil {
		return Edge{}, fmt.Errorf("create lineage: %w", err)
	}
	defer unlock()

	existing, err := s.lineageRepository.GetByPair(ctx, source, target)
	switch {
	case err == nil:
		return existing, nil
	case !errors.As(err, new(NotFoundError)):
		return Edge{}, fmt.Errorf("create lineage: lookup: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Edge{}, fmt.Errorf("create lineage: %w", err)
	}

	edge, err = s.lineageRepository.Insert(ctx, Edge{
		ID:        s.newID(),
		Source:    source,
		Target:    target,
		Type:      TypeDirect,
		CreatedAt: s.now().UTC(),
	})
	if errors.As(err, new(AlreadyExistsError)) {
		// Written by another process between the lookup and the insert.
		return s.lineageRepository.GetByPair(ctx, source, target)
	}
	if err != nil {
		return Edge{}, fmt.Errorf("create lineage: %w", err)
	}
	return edge, nil
}

func (s *Service) Get(ctx context.Context, id string) (edge Edge, err error) {
	defer func() {
		s.instrumentLineageOp(ctx, "Get", err)
	}()

	if id == "" {
		return Edge{}, ErrEmptyID
	}
	edge, err = s.lineageRepository.GetByID(ctx, id)
	if err != nil {
		return Edge{}, fmt.Errorf("get lineage: %w", err)
	}
	return edge, nil
}

// Update moves the edge to new endpoints while keeping its id.
func (s *Service) Update(ctx context.Context, id, source, target string) (edge Edge, err error) {
	defer func() {
		s.instrumentLineageOp(ctx, "Update", err)
	}()

	if id == "" {
		return Edge{}, ErrEmptyID
	}
	if err := s.Validate(source, target); err != nil {
		return Edge{}, err
	}
	if err := s.resolve(ctx, source, target); err != nil {
		return Edge{}, err
	}

	unlock, err := s.locks.LockMany(ctx, "lineage-id:"+id, pairKey(source, target))
	if err != nil {
		return Edge{}, fmt.Errorf("update lineage %q: %w", id, err)
	}
	defer unlock()

	current, err := s.lineageRepository.GetByID(ctx, id)
	if err != nil {
		return Edge{}, fmt.Errorf("update lineage %q: %w", id, err)
	}
	if !Compare(current, source, target).HasChanges() {
		return current, nil
	}

	other, err := s.lineageRepository.GetByPair(ctx, source, target)
	switch {
	case err == nil && other.ID != id:
		return Edge{}, AlreadyExistsError{Source: source, Target: target, ExistingID: other.ID}
	case err != nil && !errors.As(err, new(NotFoundError)):
		return Edge{}, fmt.Errorf("update lineage %q: lookup: %w", id, err)
	}

	if err := ctx.Err(); err != nil {
		return Edge{}, fmt.Errorf("update lineage %q: %w", id, err)
	}

	current.Source = source
	current.Target = target
	edge, err = s.lineageRepository.Update(ctx, current)
	if err != nil {
		return Edge{}, fmt.Errorf("update lineage %q: %w", id, err)
	}
	return edge, nil
}

func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() {
		s.instrumentLineageOp(ctx, "Delete", err)
	}()

	if id == "" {
		return ErrEmptyID
	}

	unlock, err := s.locks.Lock(ctx, "lineage-id:"+id)
	if err != nil {
		return fmt.Errorf("delete lineage %q: %w", id, err)
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete lineage %q: %w", id, err)
	}
	if err := s.lineageRepository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete lineage %q: %w", id, err)
	}
	return nil
}

// Diff compares a stored edge with desired endpoints.
func (s *Service) Diff(prior Edge, source, target string) Diff {
	return Compare(prior, source, target)
}

// CheckStale reports whether either endpoint of e no longer resolves.
func (s *Service) CheckStale(ctx context.Context, e Edge) (bool, error) {
	for _, mrn := range []string{e.Source, e.Target} {
		ok, err := s.resolver.Exists(ctx, mrn)
		if err != nil {
			return false, fmt.Errorf("check lineage %q: %w", e.ID, err)
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) List(ctx context.Context, flt Filter) ([]Edge, error) {
	edges, err := s.lineageRepository.List(ctx, flt)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}
	return edges, nil
}

func (s *Service) resolve(ctx context.Context, source, target string) error {
	for _, ref := range []struct{ role, mrn string }{{"source", source}, {"target", target}} {
		ok, err := s.resolver.Exists(ctx, ref.mrn)
		if err != nil {
			return fmt.Errorf("resolve lineage %s: %w", ref.role, err)
		}
		if !ok {
			return UnresolvedReferenceError{Role: ref.role, MRN: ref.mrn}
		}
	}
	return nil
}

func pairKey(source, target string) string {
	return "lineage-pair:" + source + "\x00" + target
}

func (s *Service) instrumentLineageOp(ctx context.Context, op string, err error) {
	if s.lineageOpCounter == nil {
		return
	}
	s.lineageOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("marmot.lineage_operation", op),
		attribute.Bool("operation.success", err == nil),
	))
}
