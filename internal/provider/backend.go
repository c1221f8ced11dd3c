package provider

import (
	"context"
	"fmt"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/goto/pulumi-marmot/core/lineage"
	"github.com/goto/pulumi-marmot/internal/catalog"
	"github.com/goto/pulumi-marmot/internal/store/memory"
	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/pulumi-marmot/pkg/keylock"
	"github.com/goto/salt/log"
)

// backend owns the repositories of one configured provider and the
// services built on them.
type backend struct {
	driver string
	assets *asset.Service
	edges  *lineage.Service
	close  func() error
}

type repositories struct {
	assets  asset.Repository
	lineage lineage.Repository
	close   func() error
}

func openRepositories(ctx context.Context, logger log.Logger, store StoreConfig, db postgres.Config, cfg providerConfig) (repositories, error) {
	switch store.Driver {
	case DriverMemory:
		return repositories{
			assets:  memory.NewAssetRepository(),
			lineage: memory.NewLineageRepository(),
		}, nil

	case DriverPostgres:
		client, err := postgres.NewClient(db)
		if err != nil {
			return repositories{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return repositories{}, asset.BackendUnavailableError{Op: "ping postgres", Err: err}
		}
		if store.AutoMigrate {
			ver, err := client.Migrate(db)
			if err != nil {
				client.Close()
				return repositories{}, err
			}
			logger.Info("postgres migrated", "version", ver)
		}
		assetRepo, err := postgres.NewAssetRepository(client)
		if err != nil {
			client.Close()
			return repositories{}, err
		}
		lineageRepo, err := postgres.NewLineageRepository(client)
		if err != nil {
			client.Close()
			return repositories{}, err
		}
		return repositories{assets: assetRepo, lineage: lineageRepo, close: client.Close}, nil

	case DriverCatalog, "":
		client, err := catalog.NewClient(catalog.Config{
			Host:    cfg.Host,
			APIKey:  cfg.APIKey,
			Timeout: store.Timeout,
		})
		if err != nil {
			return repositories{}, err
		}
		logger.Debug("using catalog", "url", client.BaseURL())
		return repositories{
			assets:  catalog.NewAssetRepository(client),
			lineage: catalog.NewLineageRepository(client),
		}, nil
	}
	return repositories{}, store.validate()
}

func newBackend(driver string, repos repositories) *backend {
	locks := keylock.New()
	assets := asset.NewService(asset.ServiceDeps{
		AssetRepo: repos.assets,
		Locker:    locks,
	})
	edges := lineage.NewService(lineage.ServiceDeps{
		LineageRepo: repos.lineage,
		Resolver:    assets,
		Locker:      locks,
	})
	closeFn := repos.close
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &backend{driver: driver, assets: assets, edges: edges, close: closeFn}
}
