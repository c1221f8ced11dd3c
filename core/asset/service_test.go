package asset_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/goto/pulumi-marmot/lib/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(repo *mocks.AssetRepository) *asset.Service {
	return asset.NewService(asset.ServiceDeps{
		AssetRepo: repo,
		Clock:     func() time.Time { return fixedNow },
	})
}

func TestService_Create(t *testing.T) {
	const mrn = "mrn://default/topic/orders"

	type testCase struct {
		Description string
		Asset       asset.Asset
		Setup       func(context.Context, *mocks.AssetRepository)
		Check       func(*testing.T, asset.Asset, error)
	}

	testCases := []testCase{
		{
			Description: "should assign id, mrn and base version",
			Asset:       baseAsset(),
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByMRN", ctx, mrn).Return(asset.Asset{}, asset.NotFoundError{MRN: mrn})
				ar.On("Insert", ctx, mock.MatchedBy(func(a asset.Asset) bool {
					return a.ID != "" && a.MRN == mrn && a.Version == asset.BaseVersion &&
						a.Namespace == asset.DefaultNamespace && a.CreatedAt.Equal(fixedNow)
				})).Return(func(_ context.Context, a asset.Asset) asset.Asset { return a }, nil)
			},
			Check: func(t *testing.T, got asset.Asset, err error) {
				require.NoError(t, err)
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, mrn, got.MRN)
				assert.Equal(t, "0.1", got.Version)
			},
		},
		{
			Description: "should return already exists when mrn is taken",
			Asset:       baseAsset(),
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByMRN", ctx, mrn).Return(asset.Asset{ID: "existing-id", MRN: mrn}, nil)
			},
			Check: func(t *testing.T, _ asset.Asset, err error) {
				var exists asset.AlreadyExistsError
				require.ErrorAs(t, err, &exists)
				assert.Equal(t, "existing-id", exists.ExistingID)
				assert.Equal(t, mrn, exists.MRN)
			},
		},
		{
			Description: "should reject invalid asset without touching the repository",
			Asset:       asset.Asset{Type: asset.TypeTopic},
			Check: func(t *testing.T, _ asset.Asset, err error) {
				var invalid asset.InvalidError
				require.ErrorAs(t, err, &invalid)
				require.Len(t, invalid.Fields, 1)
				assert.Equal(t, "name", invalid.Fields[0].Field)
			},
		},
		{
			Description: "should reject environments sharing a path",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Environments["dr"] = asset.Environment{Name: "DR", Path: "prod/orders"}
				return a
			}(),
			Check: func(t *testing.T, _ asset.Asset, err error) {
				var invalid asset.InvalidError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, "environments[prod].path", invalid.Fields[0].Field)
			},
		},
		{
			Description: "should propagate lookup errors",
			Asset:       baseAsset(),
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByMRN", ctx, mrn).Return(asset.Asset{}, asset.BackendUnavailableError{Err: errors.New("connection refused")})
			},
			Check: func(t *testing.T, _ asset.Asset, err error) {
				assert.ErrorAs(t, err, new(asset.BackendUnavailableError))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			ctx := context.Background()
			repo := new(mocks.AssetRepository)
			if tc.Setup != nil {
				tc.Setup(ctx, repo)
			}
			defer repo.AssertExpectations(t)

			got, err := newService(repo).Create(ctx, tc.Asset)
			tc.Check(t, got, err)
		})
	}
}

func TestService_CreateCancelled(t *testing.T) {
	repo := new(mocks.AssetRepository)
	defer repo.AssertExpectations(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(repo).Create(ctx, baseAsset())
	assert.ErrorIs(t, err, context.Canceled)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestService_Update(t *testing.T) {
	const id = "8f0b4a52-7b55-4a43-9c1b-4b2f3cf1e7a1"

	stored := func() asset.Asset {
		a := baseAsset().Normalize()
		a.ID = id
		a.Version = "0.3"
		a.CreatedAt = fixedNow.Add(-time.Hour)
		return a
	}

	type testCase struct {
		Description string
		Asset       func() asset.Asset
		Setup       func(context.Context, *mocks.AssetRepository)
		Check       func(*testing.T, asset.Asset, []string, error)
	}

	testCases := []testCase{
		{
			Description: "should bump version and return changes",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Metadata.Set("owner", value.String("team-b"))
				return a
			},
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
				ar.On("Update", ctx, mock.MatchedBy(func(a asset.Asset) bool {
					return a.ID == id && a.Version == "0.4" && a.CreatedAt.Equal(stored().CreatedAt) &&
						a.UpdatedAt.Equal(fixedNow)
				}), "0.3").Return(func(_ context.Context, a asset.Asset, _ string) asset.Asset { return a }, nil)
			},
			Check: func(t *testing.T, got asset.Asset, changes []string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "0.4", got.Version)
				assert.Equal(t, []string{"metadata.owner:modify"}, changes)
			},
		},
		{
			Description: "should not write when nothing changed",
			Asset:       baseAsset,
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
			},
			Check: func(t *testing.T, got asset.Asset, changes []string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "0.3", got.Version)
				assert.Empty(t, changes)
			},
		},
		{
			Description: "should reject identity changes",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Type = asset.TypeTable
				return a
			},
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
			},
			Check: func(t *testing.T, _ asset.Asset, _ []string, err error) {
				var immutable asset.ImmutableFieldError
				require.ErrorAs(t, err, &immutable)
				assert.Equal(t, []string{"type"}, immutable.Fields)
				assert.Equal(t, id, immutable.AssetID)
			},
		},
		{
			Description: "should accept a type case change that keeps the mrn",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Type = "topic"
				return a
			},
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
				ar.On("Update", ctx, mock.MatchedBy(func(a asset.Asset) bool {
					return a.Type == "topic" && a.MRN == stored().MRN
				}), "0.3").Return(func(_ context.Context, a asset.Asset, _ string) asset.Asset { return a }, nil)
			},
			Check: func(t *testing.T, got asset.Asset, changes []string, err error) {
				require.NoError(t, err)
				assert.Equal(t, "0.4", got.Version)
				assert.Equal(t, []string{"type:modify"}, changes)
			},
		},
		{
			Description: "should reject a stale version",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Version = "0.2"
				a.Description = "changed"
				return a
			},
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
			},
			Check: func(t *testing.T, _ asset.Asset, _ []string, err error) {
				var conflict asset.VersionConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, "0.3", conflict.Actual)
			},
		},
		{
			Description: "should keep stored services when none are given",
			Asset: func() asset.Asset {
				a := baseAsset()
				a.Services = nil
				a.Description = "changed"
				return a
			},
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(stored(), nil)
				ar.On("Update", ctx, mock.MatchedBy(func(a asset.Asset) bool {
					return assert.ObjectsAreEqual([]string{"kafka"}, a.Services)
				}), "0.3").Return(func(_ context.Context, a asset.Asset, _ string) asset.Asset { return a }, nil)
			},
			Check: func(t *testing.T, got asset.Asset, changes []string, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"kafka"}, got.Services)
				assert.Equal(t, []string{"description:modify"}, changes)
			},
		},
		{
			Description: "should return not found for unknown id",
			Asset:       baseAsset,
			Setup: func(ctx context.Context, ar *mocks.AssetRepository) {
				ar.On("GetByID", ctx, id).Return(asset.Asset{}, asset.NotFoundError{AssetID: id})
			},
			Check: func(t *testing.T, _ asset.Asset, _ []string, err error) {
				assert.ErrorAs(t, err, new(asset.NotFoundError))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.Description, func(t *testing.T) {
			ctx := context.Background()
			repo := new(mocks.AssetRepository)
			tc.Setup(ctx, repo)
			defer repo.AssertExpectations(t)

			got, changes, err := newService(repo).Update(ctx, id, tc.Asset())
			tc.Check(t, got, paths(changes), err)
		})
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("should delete by id", func(t *testing.T) {
		repo := new(mocks.AssetRepository)
		repo.On("DeleteByID", ctx, "some-id").Return(nil)
		defer repo.AssertExpectations(t)

		assert.NoError(t, newService(repo).Delete(ctx, "some-id"))
	})

	t.Run("should return not found from repository", func(t *testing.T) {
		repo := new(mocks.AssetRepository)
		repo.On("DeleteByID", ctx, "some-id").Return(asset.NotFoundError{AssetID: "some-id"})
		defer repo.AssertExpectations(t)

		err := newService(repo).Delete(ctx, "some-id")
		assert.ErrorAs(t, err, new(asset.NotFoundError))
	})

	t.Run("should reject empty id", func(t *testing.T) {
		err := newService(new(mocks.AssetRepository)).Delete(ctx, "")
		assert.ErrorIs(t, err, asset.ErrEmptyID)
	})
}

func TestService_Exists(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.AssetRepository)
	repo.On("GetByMRN", ctx, "mrn://default/topic/orders").Return(asset.Asset{ID: "id"}, nil)
	repo.On("GetByMRN", ctx, "mrn://default/topic/missing").Return(asset.Asset{}, asset.NotFoundError{MRN: "mrn://default/topic/missing"})
	defer repo.AssertExpectations(t)

	svc := newService(repo)

	ok, err := svc.Exists(ctx, "mrn://default/topic/orders")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(ctx, "mrn://default/topic/missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Prepare(t *testing.T) {
	svc := newService(new(mocks.AssetRepository))

	a := baseAsset()
	a.Namespace = "payments"
	got, err := svc.Prepare(a)
	require.NoError(t, err)
	assert.Equal(t, "mrn://payments/topic/orders", got.MRN)
	assert.Empty(t, got.ID)
}
