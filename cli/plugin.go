package cli

import (
	"context"
	"fmt"

	mprovider "github.com/goto/pulumi-marmot/internal/provider"
	"github.com/goto/pulumi-marmot/pkg/statsd"
	"github.com/goto/pulumi-marmot/pkg/telemetry"
	"github.com/pulumi/pulumi/pkg/v3/resource/provider"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
)

const providerName = "marmot"

// ServeProvider runs the resource provider plugin until the engine shuts it
// down. The engine address is read from the process arguments.
func ServeProvider(ctx context.Context, cfg *Config) error {
	logger := initLogger(cfg.LogLevel)
	logger.Info("marmot provider starting", "version", Version, "store", cfg.Store.Driver)

	statsdReporter, err := statsd.Init(logger, cfg.StatsD)
	if err != nil {
		return fmt.Errorf("init statsd: %w", err)
	}
	defer statsdReporter.Close()

	cfg.Telemetry.AppVersion = Version
	cleanUpTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer cleanUpTelemetry()

	var prov *mprovider.Provider
	defer func() {
		if prov == nil {
			return
		}
		if err := prov.Close(); err != nil {
			logger.Warn("closing provider", "error", err)
		}
	}()

	return provider.Main(providerName, func(host *provider.HostClient) (pulumirpc.ResourceProviderServer, error) {
		prov = mprovider.New(host, mprovider.Options{
			Version: Version,
			Logger:  logger,
			Store:   cfg.Store,
			DB:      cfg.DB,
			Statsd:  statsdReporter,
		})
		return prov, nil
	})
}
