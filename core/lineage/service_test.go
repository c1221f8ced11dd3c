package lineage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goto/pulumi-marmot/core/change"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/lib/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	orders   = "mrn://default/topic/orders"
	payments = "mrn://default/database/payments"
	edgeID   = "0d1c8c3e-8a3d-4f83-9a0e-8c6f5e2b6f11"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(repo *mocks.LineageRepository, resolver *mocks.AssetResolver) *lineage.Service {
	return lineage.NewService(lineage.ServiceDeps{
		LineageRepo: repo,
		Resolver:    resolver,
		Clock:       func() time.Time { return fixedNow },
	})
}

func TestService_Create(t *testing.T) {
	type testCase struct {
		Description string
		Source      string
		Target      string
		Setup       func(context.Context, *mocks.LineageRepository, *mocks.AssetResolver)
		Check       func(*testing.T, lineage.Edge, error)
	}

	testCases := []testCase{
		{
			Description: "should reject a self loop",
			Source:      orders,
			Target:      orders,
			Check: func(t *testing.T, _ lineage.Edge, err error) {
				assert.ErrorAs(t, err, new(lineage.InvalidError))
			},
		},
		{
			Description: "should reject a malformed mrn",
			Source:      "orders",
			Target:      payments,
			Check: func(t *testing.T, _ lineage.Edge, err error) {
				var invalid lineage.InvalidError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "source", invalid.Field)
			},
		},
		{
			Description: "should return unresolved reference when target does not exist",
			Source:      orders,
			Target:      payments,
			Setup: func(ctx context.Context, _ *mocks.LineageRepository, ar *mocks.AssetResolver) {
				ar.On("Exists", ctx, orders).Return(true, nil)
				ar.On("Exists", ctx, payments).Return(false, nil)
			},
			Check: func(t *testing.T, _ lineage.Edge, err error) {
				var unresolved lineage.UnresolvedReferenceError
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, "target", unresolved.Role)
				assert.Equal(t, payments, unresolved.MRN)
			},
		},
		{
			Description: "should create a new edge",
			Source:      orders,
			Target:      payments,
			Setup: func(ctx context.Context, lr *mocks.LineageRepository, ar *mocks.AssetResolver) {
				ar.On("Exists", ctx, mock.Anything).Return(true, nil)
				lr.On("GetByPair", ctx, orders, payments).Return(lineage.Edge{}, lineage.NotFoundError{Source: orders, Target: payments})
				lr.On("Insert", ctx, mock.MatchedBy(func(e lineage.Edge) bool {
					return e.ID != "" && e.Type == lineage.TypeDirect && e.CreatedAt.Equal(fixedNow)
				})).Return(func(_ context.Context, e lineage.Edge) lineage.Edge { return e }, nil)
			},
			Check: func(t *testing.T, got lineage.Edge, err error) {
				require.NoError(t, err)
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, orders, got.Source)
				assert.Equal(t, payments, got.Target)
			},
		},
		{
			Description: "should return the existing edge for a duplicate pair",
			Source:      orders,
			Target:      payments,
			Setup: func(ctx context.Context, lr *mocks.LineageRepository, ar *mocks.AssetResolver) {
				ar.On("Exists", ctx, mock.Anything).Return(true, nil)
				lr.On("GetByPair", ctx, orders, payments).Return(lineage.Edge{ID: edgeID, Source: orders, Target: payments}, nil)
			},
			Check: func(t *testing.T, got lineage.Edge, err error) {
				require.NoError(t, err)
				assert.Equal(t, edgeID, got.ID)
			},
		},
		{
			Description: "should return the winner when a concurrent insert took the pair",
			Source:      orders,
			Target:      payments,
			Setup: func(ctx context.Context, lr *mocks.LineageRepository, ar *mocks.AssetResolver) {
				ar.On("Exists", ctx, mock.Anything).Return(true, nil)
				lr.On("GetByPair", ctx, orders, payments).Return(lineage.Edge{}, lineage.NotFoundError{}).Once()
				lr.On("Insert", ctx, mock.Anything).Return(lineage.Edge{}, lineage.AlreadyExistsError{Source: orders, Target: payments})
				lr.On("GetByPair", ctx, orders, payments).Return(lineage.Edge{ID: edgeID}, nil).Once()
			},
			Check: func(t *testing.T, got lineage.Edge, err error) {
				require.NoError(t, err)
				assert.Equal(t, edgeID, got.ID)
			},
		},
		{
			Description: "should propagate resolver errors",
			Source:      orders,
			Target:      payments,
			Setup: func(ctx context.Context, _ *mocks.LineageRepository, ar *mocks.AssetResolver) {
				ar.On("Exists", ctx, orders).Return(false, errors.New("catalog down"))
			},
			Check: func(t *testing.T, _ lineage.Edge, err error) {
				assert.EqualError(t, err, "resolve lineage source: catalog down")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			ctx := context.Background()
			repo := new(mocks.LineageRepository)
			resolver := new(mocks.AssetResolver)
			if tc.Setup != nil {
				tc.Setup(ctx, repo, resolver)
			}
			defer repo.AssertExpectations(t)
			defer resolver.AssertExpectations(t)

			got, err := newService(repo, resolver).Create(ctx, tc.Source, tc.Target)
			tc.Check(t, got, err)
		})
	}
}

func TestService_CreateAfterTargetAppears(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.LineageRepository)
	resolver := new(mocks.AssetResolver)
	svc := newService(repo, resolver)

	resolver.On("Exists", ctx, orders).Return(true, nil)
	resolver.On("Exists", ctx, payments).Return(false, nil).Once()

	_, err := svc.Create(ctx, orders, payments)
	require.ErrorAs(t, err, new(lineage.UnresolvedReferenceError))

	resolver.On("Exists", ctx, payments).Return(true, nil)
	repo.On("GetByPair", ctx, orders, payments).Return(lineage.Edge{}, lineage.NotFoundError{})
	repo.On("Insert", ctx, mock.Anything).Return(func(_ context.Context, e lineage.Edge) lineage.Edge { return e }, nil)

	edge, err := svc.Create(ctx, orders, payments)
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
}

func TestService_Update(t *testing.T) {
	const shipments = "mrn://default/table/shipments"
	current := lineage.Edge{ID: edgeID, Source: orders, Target: payments, Type: lineage.TypeDirect, CreatedAt: fixedNow}

	t.Run("should keep the id when moving the target", func(t *testing.T) {
		ctx := context.Background()
		repo := new(mocks.LineageRepository)
		resolver := new(mocks.AssetResolver)
		defer repo.AssertExpectations(t)

		resolver.On("Exists", ctx, mock.Anything).Return(true, nil)
		repo.On("GetByID", ctx, edgeID).Return(current, nil)
		repo.On("GetByPair", ctx, orders, shipments).Return(lineage.Edge{}, lineage.NotFoundError{})
		repo.On("Update", ctx, lineage.Edge{ID: edgeID, Source: orders, Target: shipments, Type: lineage.TypeDirect, CreatedAt: fixedNow}).
			Return(func(_ context.Context, e lineage.Edge) lineage.Edge { return e }, nil)

		got, err := newService(repo, resolver).Update(ctx, edgeID, orders, shipments)
		require.NoError(t, err)
		assert.Equal(t, edgeID, got.ID)
		assert.Equal(t, shipments, got.Target)
	})

	t.Run("should reject a pair owned by another edge", func(t *testing.T) {
		ctx := context.Background()
		repo := new(mocks.LineageRepository)
		resolver := new(mocks.AssetResolver)

		resolver.On("Exists", ctx, mock.Anything).Return(true, nil)
		repo.On("GetByID", ctx, edgeID).Return(current, nil)
		repo.On("GetByPair", ctx, orders, shipments).Return(lineage.Edge{ID: "other"}, nil)

		_, err := newService(repo, resolver).Update(ctx, edgeID, orders, shipments)
		var exists lineage.AlreadyExistsError
		require.ErrorAs(t, err, &exists)
		assert.Equal(t, "other", exists.ExistingID)
	})

	t.Run("should not write when endpoints are unchanged", func(t *testing.T) {
		ctx := context.Background()
		repo := new(mocks.LineageRepository)
		resolver := new(mocks.AssetResolver)
		defer repo.AssertExpectations(t)

		resolver.On("Exists", ctx, mock.Anything).Return(true, nil)
		repo.On("GetByID", ctx, edgeID).Return(current, nil)

		got, err := newService(repo, resolver).Update(ctx, edgeID, orders, payments)
		require.NoError(t, err)
		assert.Equal(t, current, got)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.LineageRepository)
	repo.On("DeleteByID", ctx, edgeID).Return(lineage.NotFoundError{EdgeID: edgeID})

	err := newService(repo, new(mocks.AssetResolver)).Delete(ctx, edgeID)
	assert.ErrorAs(t, err, new(lineage.NotFoundError))
}

func TestService_CheckStale(t *testing.T) {
	ctx := context.Background()
	resolver := new(mocks.AssetResolver)
	resolver.On("Exists", ctx, orders).Return(true, nil)
	resolver.On("Exists", ctx, payments).Return(false, nil)

	stale, err := newService(new(mocks.LineageRepository), resolver).
		CheckStale(ctx, lineage.Edge{ID: edgeID, Source: orders, Target: payments})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestService_Diff(t *testing.T) {
	svc := newService(new(mocks.LineageRepository), new(mocks.AssetResolver))
	prior := lineage.Edge{ID: edgeID, Source: orders, Target: payments}

	d := svc.Diff(prior, orders, "mrn://default/table/shipments")
	assert.False(t, d.SourceChanged)
	assert.True(t, d.TargetChanged)

	result := d.Result()
	assert.False(t, result.Replace())
	assert.Equal(t, map[string]change.Kind{"source": change.Unchanged, "target": change.Modify}, result.Fields)

	assert.False(t, svc.Diff(prior, orders, payments).HasChanges())
}
