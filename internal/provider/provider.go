// Package provider implements the Pulumi resource provider protocol for
// Marmot assets and lineage.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goto/pulumi-marmot/internal/store/postgres"
	"github.com/goto/pulumi-marmot/pkg/retry"
	"github.com/goto/pulumi-marmot/pkg/statsd"
	"github.com/goto/salt/log"
	defaults "github.com/mcuadros/go-defaults"
	"github.com/oklog/ulid/v2"
	"github.com/pulumi/pulumi/sdk/v3/go/common/diag"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Host is the part of the engine connection the provider talks back to.
type Host interface {
	Log(ctx context.Context, sev diag.Severity, urn resource.URN, msg string) error
}

type Options struct {
	Version string
	Logger  log.Logger
	Store   StoreConfig
	DB      postgres.Config
	Statsd  *statsd.Reporter
}

type Provider struct {
	pulumirpc.UnimplementedResourceProviderServer

	host    Host
	version string
	logger  log.Logger
	store   StoreConfig
	db      postgres.Config
	statsd  *statsd.Reporter
	retry   retry.Policy

	// ctx is cancelled by the Cancel RPC and bounds every call.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	config  providerConfig
	backend *backend

	rpcCounter  metric.Int64Counter
	rpcDuration metric.Float64Histogram
}

func New(host Host, opts Options) *Provider {
	store := opts.Store
	if store == (StoreConfig{}) {
		defaults.SetDefaults(&store)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoop()
	}

	meter := otel.Meter("github.com/goto/pulumi-marmot/internal/provider")
	rpcCounter, err := meter.Int64Counter("marmot.provider.rpc")
	if err != nil {
		otel.Handle(err)
	}
	rpcDuration, err := meter.Float64Histogram("marmot.provider.rpc.duration", metric.WithUnit("ms"))
	if err != nil {
		otel.Handle(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Provider{
		host:        host,
		version:     opts.Version,
		logger:      logger,
		store:       store,
		db:          opts.DB,
		statsd:      opts.Statsd,
		retry:       store.Retry.Policy(),
		ctx:         ctx,
		cancel:      cancel,
		rpcCounter:  rpcCounter,
		rpcDuration: rpcDuration,
	}
}

// Close releases the configured backend.
func (p *Provider) Close() error {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backend == nil {
		return nil
	}
	err := p.backend.close()
	p.backend = nil
	return err
}

func (p *Provider) GetPluginInfo(context.Context, *emptypb.Empty) (*pulumirpc.PluginInfo, error) {
	return &pulumirpc.PluginInfo{Version: p.version}, nil
}

func (p *Provider) GetSchema(_ context.Context, req *pulumirpc.GetSchemaRequest) (*pulumirpc.GetSchemaResponse, error) {
	if v := req.GetVersion(); v != 0 {
		return nil, fmt.Errorf("unsupported schema version %d", v)
	}
	data, err := MarshalSchema(p.version)
	if err != nil {
		return nil, err
	}
	return &pulumirpc.GetSchemaResponse{Schema: string(data)}, nil
}

// Cancel stops in-flight calls, retries included. The provider is shut
// down afterwards.
func (p *Provider) Cancel(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	p.logger.Info("cancel requested")
	p.cancel()
	return &emptypb.Empty{}, nil
}

func (p *Provider) CheckConfig(ctx context.Context, req *pulumirpc.CheckRequest) (resp *pulumirpc.CheckResponse, err error) {
	ctx, c := p.begin(ctx, "CheckConfig", resource.URN(req.GetUrn()))
	defer func() { err = c.end(ctx, err) }()

	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}
	return &pulumirpc.CheckResponse{Inputs: req.GetNews(), Failures: checkConfig(news)}, nil
}

func (p *Provider) DiffConfig(ctx context.Context, req *pulumirpc.DiffRequest) (resp *pulumirpc.DiffResponse, err error) {
	ctx, c := p.begin(ctx, "DiffConfig", resource.URN(req.GetUrn()))
	defer func() { err = c.end(ctx, err) }()

	olds, err := unmarshal(req.GetOldInputs())
	if err != nil {
		return nil, err
	}
	news, err := unmarshal(req.GetNews())
	if err != nil {
		return nil, err
	}

	before, after := configFromProperties(olds), configFromProperties(news)
	resp = &pulumirpc.DiffResponse{Changes: pulumirpc.DiffResponse_DIFF_NONE}
	if before.Host != after.Host || news[configHost].ContainsUnknowns() {
		resp.Diffs = append(resp.Diffs, configHost)
	}
	if before.APIKey != after.APIKey || news[configAPIKey].ContainsUnknowns() {
		resp.Diffs = append(resp.Diffs, configAPIKey)
	}
	if len(resp.Diffs) > 0 {
		resp.Changes = pulumirpc.DiffResponse_DIFF_SOME
	}
	return resp, nil
}

// Configure records the catalog settings and opens the store. With
// unknown settings only previews are possible.
func (p *Provider) Configure(ctx context.Context, req *pulumirpc.ConfigureRequest) (resp *pulumirpc.ConfigureResponse, err error) {
	ctx, c := p.begin(ctx, "Configure", "")
	defer func() { err = c.end(ctx, err) }()

	if err := p.store.validate(); err != nil {
		return nil, err
	}
	cfg, err := parseConfigure(req)
	if err != nil {
		return nil, err
	}
	if p.store.Driver == DriverCatalog && !cfg.Unknown {
		if failures := checkConfig(configProperties(cfg)); len(failures) > 0 {
			return nil, checkFailuresError(failures)
		}
	}

	var b *backend
	if !cfg.Unknown {
		repos, err := openRepositories(ctx, c.logger, p.store, p.db, cfg)
		if err != nil {
			return nil, err
		}
		b = newBackend(p.store.Driver, repos)
	}

	p.mu.Lock()
	old := p.backend
	p.config, p.backend = cfg, b
	p.mu.Unlock()

	if old != nil {
		if err := old.close(); err != nil {
			c.logger.Warn("closing previous backend", "err", err)
		}
	}
	c.logger.Info("provider configured", "driver", p.store.Driver, "host", cfg.Host, "unknown", cfg.Unknown)

	return &pulumirpc.ConfigureResponse{
		AcceptSecrets:   true,
		SupportsPreview: true,
	}, nil
}

func configProperties(cfg providerConfig) resource.PropertyMap {
	pm := resource.PropertyMap{}
	if cfg.Host != "" {
		pm[configHost] = resource.NewStringProperty(cfg.Host)
	}
	if cfg.APIKey != "" {
		pm[configAPIKey] = resource.NewStringProperty(cfg.APIKey)
	}
	return pm
}

// configured returns the backend or errNotConfigured.
func (p *Provider) configured() (*backend, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.backend == nil {
		return nil, errNotConfigured
	}
	return p.backend, nil
}

func (p *Provider) warn(ctx context.Context, urn resource.URN, msg string) {
	if p.host == nil {
		return
	}
	if err := p.host.Log(ctx, diag.Warning, urn, msg); err != nil {
		p.logger.Warn("host log failed", "urn", urn, "err", err)
	}
}

// call tracks one RPC for logging and metrics.
type call struct {
	p        *Provider
	op       string
	urn      resource.URN
	resource string
	logger   log.Logger
	start    time.Time
	stop     func()
}

func (p *Provider) begin(ctx context.Context, op string, urn resource.URN) (context.Context, *call) {
	typ := "provider"
	if urn != "" && urn.IsValid() {
		typ = string(urn.Type())
	}
	opID := ulid.Make().String()

	ctx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(p.ctx, cancel)
	if p.ctx.Err() != nil {
		cancel()
	}

	c := &call{
		p:        p,
		op:       op,
		urn:      urn,
		resource: typ,
		logger:   opLogger{Logger: p.logger, kv: []interface{}{"op", op, "op_id", opID}},
		start:    time.Now(),
		stop: func() {
			stopAfter()
			cancel()
		},
	}
	c.logger.Debug("rpc started", "urn", urn)
	return ctx, c
}

// end records the outcome and maps err onto a gRPC status.
func (c *call) end(ctx context.Context, err error) error {
	defer c.stop()

	elapsed := time.Since(c.start)
	success := err == nil
	attrs := metric.WithAttributes(
		attribute.String("marmot.rpc", c.op),
		attribute.String("marmot.resource", c.resource),
		attribute.Bool("operation.success", success),
	)
	if c.p.rpcCounter != nil {
		c.p.rpcCounter.Add(ctx, 1, attrs)
	}
	if c.p.rpcDuration != nil {
		c.p.rpcDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}

	m := c.p.statsd.Timing("provider.rpc", elapsed).
		Tag("op", c.op).
		Tag("resource", c.resource)
	if success {
		m.Success().Publish()
		c.logger.Debug("rpc finished", "duration", elapsed)
		return nil
	}
	m.Failure(errorKind(err)).Publish()
	c.logger.Error("rpc failed", "urn", c.urn, "duration", elapsed, "err", err)

	subject := string(c.urn)
	if subject == "" {
		subject = c.op
	}
	return toStatus(subject, err)
}

// withRetry runs fn under the store retry policy, logging each retry.
func (c *call) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	policy := c.p.retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.logger.Warn("backend unavailable, retrying", "attempt", attempt, "wait", wait, "err", err)
	}
	return retry.Do(ctx, policy, fn)
}

// opLogger prefixes every entry with the operation fields.
type opLogger struct {
	log.Logger
	kv []interface{}
}

func (l opLogger) with(kv []interface{}) []interface{} {
	return append(append([]interface{}{}, l.kv...), kv...)
}

func (l opLogger) Debug(msg string, kv ...interface{}) { l.Logger.Debug(msg, l.with(kv)...) }
func (l opLogger) Info(msg string, kv ...interface{})  { l.Logger.Info(msg, l.with(kv)...) }
func (l opLogger) Warn(msg string, kv ...interface{})  { l.Logger.Warn(msg, l.with(kv)...) }
func (l opLogger) Error(msg string, kv ...interface{}) { l.Logger.Error(msg, l.with(kv)...) }
