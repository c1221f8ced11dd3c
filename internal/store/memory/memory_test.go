package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/core/value"
	"github.com/goto/pulumi-marmot/internal/store/memory"
	"github.com/goto/pulumi-marmot/pkg/keylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServices() (*asset.Service, *lineage.Service) {
	locks := keylock.New()
	assets := asset.NewService(asset.ServiceDeps{
		AssetRepo: memory.NewAssetRepository(),
		Locker:    locks,
	})
	edges := lineage.NewService(lineage.ServiceDeps{
		LineageRepo: memory.NewLineageRepository(),
		Resolver:    assets,
		Locker:      locks,
	})
	return assets, edges
}

func topic(name string) asset.Asset {
	return asset.Asset{
		Name:     name,
		Type:     asset.TypeTopic,
		Services: []string{"kafka"},
		Metadata: value.MapOf("owner", "team-a", "partitions", "12"),
	}
}

var cmpMaps = cmp.Comparer(func(a, b *value.Map) bool { return a.Equal(b) })

func TestAssetRoundTrip(t *testing.T) {
	ctx := context.Background()
	assets, _ := newServices()

	created, err := assets.Create(ctx, topic("orders"))
	require.NoError(t, err)
	assert.Equal(t, "mrn://default/topic/orders", created.MRN)

	read, err := assets.Get(ctx, created.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(created, read, cmpMaps); diff != "" {
		t.Errorf("read differs from created (-created +read):\n%s", diff)
	}
}

func TestAssetDuplicateMRN(t *testing.T) {
	ctx := context.Background()
	assets, _ := newServices()

	first, err := assets.Create(ctx, topic("orders"))
	require.NoError(t, err)

	_, err = assets.Create(ctx, topic("orders"))
	var exists asset.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, first.ID, exists.ExistingID)
}

func TestAssetConcurrentCreateSameMRN(t *testing.T) {
	ctx := context.Background()
	assets, _ := newServices()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := assets.Create(ctx, topic("orders")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestAssetUpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	assets, _ := newServices()

	created, err := assets.Create(ctx, topic("orders"))
	require.NoError(t, err)

	desired := topic("orders")
	desired.Metadata.Set("owner", value.String("team-b"))
	updated, changes, err := assets.Update(ctx, created.ID, desired)
	require.NoError(t, err)
	assert.Equal(t, "0.2", updated.Version)
	assert.Equal(t, created.ID, updated.ID)
	require.Len(t, changes, 1)
	assert.Equal(t, "metadata.owner", changes[0].PathString())

	read, err := assets.Get(ctx, created.ID)
	require.NoError(t, err)
	owner, _ := read.Metadata.Get("owner")
	assert.Equal(t, "team-b", owner.StringValue())
}

func TestLineageResolution(t *testing.T) {
	ctx := context.Background()
	assets, edges := newServices()

	orders, err := assets.Create(ctx, topic("orders"))
	require.NoError(t, err)

	const target = "mrn://default/table/payments"
	_, err = edges.Create(ctx, orders.MRN, target)
	var unresolved lineage.UnresolvedReferenceError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "target", unresolved.Role)

	_, err = assets.Create(ctx, asset.Asset{Name: "payments", Type: asset.TypeTable})
	require.NoError(t, err)

	first, err := edges.Create(ctx, orders.MRN, target)
	require.NoError(t, err)
	second, err := edges.Create(ctx, orders.MRN, target)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := edges.List(ctx, lineage.Filter{Source: orders.MRN})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestLineageStaleAfterAssetDelete(t *testing.T) {
	ctx := context.Background()
	assets, edges := newServices()

	a, err := assets.Create(ctx, topic("a"))
	require.NoError(t, err)
	b, err := assets.Create(ctx, topic("b"))
	require.NoError(t, err)

	e, err := edges.Create(ctx, a.MRN, b.MRN)
	require.NoError(t, err)

	require.NoError(t, assets.Delete(ctx, b.ID))

	got, err := edges.Get(ctx, e.ID)
	require.NoError(t, err)
	stale, err := edges.CheckStale(ctx, got)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestLineageRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLineageRepository()

	_, err := repo.Insert(ctx, lineage.Edge{ID: "1", Source: "a", Target: "b"})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, lineage.Edge{ID: "2", Source: "a", Target: "c"})
	require.NoError(t, err)

	_, err = repo.Update(ctx, lineage.Edge{ID: "1", Source: "a", Target: "c"})
	assert.ErrorAs(t, err, new(lineage.AlreadyExistsError))

	_, err = repo.Update(ctx, lineage.Edge{ID: "1", Source: "a", Target: "d"})
	require.NoError(t, err)

	_, err = repo.GetByPair(ctx, "a", "b")
	assert.ErrorAs(t, err, new(lineage.NotFoundError))
	got, err := repo.GetByPair(ctx, "a", "d")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)
}

func TestAssetRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAssetRepository()

	ast := topic("orders").Normalize()
	ast.ID = "id-1"
	_, err := repo.Insert(ctx, ast)
	require.NoError(t, err)

	ast.Metadata.Set("owner", value.String("mutated"))

	got, err := repo.GetByID(ctx, "id-1")
	require.NoError(t, err)
	owner, _ := got.Metadata.Get("owner")
	assert.Equal(t, "team-a", owner.StringValue())
}

func TestAssetRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAssetRepository()

	ast := topic("orders").Normalize()
	ast.ID, ast.Version = "id-1", "0.3"
	_, err := repo.Insert(ctx, ast)
	require.NoError(t, err)

	_, err = repo.Update(ctx, ast, "0.2")
	var conflict asset.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "0.3", conflict.Actual)
}
