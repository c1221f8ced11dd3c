package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/pulumi-marmot/pkg/keylock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Service struct {
	assetRepository Repository
	locks           *keylock.Locker
	now             func() time.Time
	newID           func() string

	assetOpCounter metric.Int64Counter
}

type ServiceDeps struct {
	AssetRepo Repository
	// Locker may be shared with other services. A private one is created
	// when nil.
	Locker *keylock.Locker
	Clock  func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	assetOpCounter, err := otel.Meter("github.com/goto/pulumi-marmot/core/asset").
		Int64Counter("marmot.asset.operation")
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
		assetRepository: deps.AssetRepo,
		locks:           locks,
		now:             clock,
		newID:           uuid.NewString,

		assetOpCounter: assetOpCounter,
	}
}

// Prepare validates ast and fills in the derived fields without touching
// the repository. It is what a preview shows.
func (s *Service) Prepare(ast Asset) (Asset, error) {
	ast = ast.Normalize()
	if err := ast.Validate(); err != nil {
		return Asset{}, err
	}
	return ast, nil
}

// Create stores a new asset. Assets are unique by MRN.
func (s *Service) Create(ctx context.Context, ast Asset) (created Asset, err error) {
	defer func() {
		s.instrumentAssetOp(ctx, "Create", err)
	}()

	ast, err = s.Prepare(ast)
	if err != nil {
		return Asset{}, err
	}

	unlock, err := s.locks.Lock(ctx, "asset-mrn:"+ast.MRN)
	if err != nil {
		return Asset{}, fmt.Errorf("create asset %s: %w", ast.MRN, err)
	}
	defer unlock()

	existing, err := s.assetRepository.GetByMRN(ctx, ast.MRN)
	switch {
	case err == nil:
		return Asset{}, AlreadyExistsError{MRN: ast.MRN, ExistingID: existing.ID}
	case !errors.As(err, new(NotFoundError)):
		return Asset{}, fmt.Errorf("create asset %s: lookup: %w", ast.MRN, err)
	}

	now := s.now().UTC()
	ast.ID = s.newID()
	ast.Version = BaseVersion
	ast.CreatedAt = now
	ast.UpdatedAt = now

	if err := ctx.Err(); err != nil {
		return Asset{}, fmt.Errorf("create asset %s: %w", ast.MRN, err)
	}

	created, err = s.assetRepository.Insert(ctx, ast)
	if err != nil {
		return Asset{}, fmt.Errorf("create asset %s: %w", ast.MRN, err)
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (ast Asset, err error) {
	defer func() {
		s.instrumentAssetOp(ctx, "Get", err)
	}()

	if id == "" {
		return Asset{}, ErrEmptyID
	}
	ast, err = s.assetRepository.GetByID(ctx, id)
	if err != nil {
		return Asset{}, fmt.Errorf("get asset by id: %w", err)
	}
	return ast, nil
}

func (s *Service) GetByMRN(ctx context.Context, mrn string) (Asset, error) {
	if mrn == "" {
		return Asset{}, ErrEmptyMRN
	}
	ast, err := s.assetRepository.GetByMRN(ctx, mrn)
	if err != nil {
		return Asset{}, fmt.Errorf("get asset by mrn: %w", err)
	}
	return ast, nil
}

// Exists reports whether a live asset has the given MRN.
func (s *Service) Exists(ctx context.Context, mrn string) (bool, error) {
	_, err := s.GetByMRN(ctx, mrn)
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, new(NotFoundError)):
		return false, nil
	}
	return false, err
}

// Update replaces the mutable fields of the asset with the given id and
// returns the stored asset together with the applied changes. When ast
// carries a version it must match the stored one. Empty services keep the
// services already stored.
func (s *Service) Update(ctx context.Context, id string, ast Asset) (updated Asset, changes change.Changelog, err error) {
	defer func() {
		s.instrumentAssetOp(ctx, "Update", err)
	}()

	if id == "" {
		return Asset{}, nil, ErrEmptyID
	}

	unlock, err := s.locks.Lock(ctx, "asset-id:"+id)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}
	defer unlock()

	current, err := s.assetRepository.GetByID(ctx, id)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}

	ast = ast.Normalize()
	if fields := changedIdentity(current, ast); len(fields) > 0 {
		return Asset{}, nil, ImmutableFieldError{AssetID: id, Fields: fields}
	}
	ast.ID = id
	if err := ast.Validate(); err != nil {
		return Asset{}, nil, err
	}

	if ast.Version != "" && current.Version != "" && ast.Version != current.Version {
		return Asset{}, nil, VersionConflictError{AssetID: id, Expected: ast.Version, Actual: current.Version}
	}
	if len(ast.Services) == 0 {
		ast.Services = current.Services
	}

	result, err := Diff(current, ast)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}
	if !result.HasChanges() {
		if current.Version == "" {
			current.Version = ast.Version
		}
		return current, nil, nil
	}

	version, err := nextVersion(current.Version, ast.Version)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}
	ast.MRN = current.MRN
	ast.Version = version
	ast.CreatedAt = current.CreatedAt
	ast.UpdatedAt = s.now().UTC()

	if err := ctx.Err(); err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}

	updated, err = s.assetRepository.Update(ctx, ast, current.Version)
	if err != nil {
		return Asset{}, nil, fmt.Errorf("update asset %q: %w", id, err)
	}
	return updated, result.Changes, nil
}

// Delete removes the asset. Lineage edges pointing at it are left alone.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer func() {
		s.instrumentAssetOp(ctx, "Delete", err)
	}()

	if id == "" {
		return ErrEmptyID
	}

	unlock, err := s.locks.Lock(ctx, "asset-id:"+id)
	if err != nil {
		return fmt.Errorf("delete asset %q: %w", id, err)
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete asset %q: %w", id, err)
	}
	if err := s.assetRepository.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete asset %q: %w", id, err)
	}
	return nil
}

// changedIdentity lists the identity fields whose change would alter the
// MRN. Type is compared by its MRN key, so a case change is not one.
func changedIdentity(current, desired Asset) []string {
	var fields []string
	cns, ctyp, cname := current.Identity()
	dns, dtyp, dname := desired.Identity()
	if ctyp.Key() != dtyp.Key() {
		fields = append(fields, "type")
	}
	if cname != dname {
		fields = append(fields, "name")
	}
	if cns != dns {
		fields = append(fields, "namespace")
	}
	return fields
}

func (s *Service) instrumentAssetOp(ctx context.Context, op string, err error) {
	if s.assetOpCounter == nil {
		return
	}
	s.assetOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("marmot.asset_operation", op),
		attribute.Bool("operation.success", err == nil),
	))
}
