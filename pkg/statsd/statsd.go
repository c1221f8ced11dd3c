package statsd

import (
	"time"

	std "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/goto/salt/log"
)

// Reporter sends metrics to a statsd agent. A nil or disabled Reporter
// drops everything.
type Reporter struct {
	client *std.Client
	logger log.Logger
	config Config
}

// Init validates the config and initializes the statsD client.
func Init(logger log.Logger, cfg Config) (*Reporter, error) {
	reporter := &Reporter{logger: logger, config: cfg}
	if !cfg.Enabled {
		logger.Debug("statsd is disabled")
		return reporter, nil
	}

	client, err := std.New(cfg.Address,
		std.WithNamespace(cfg.Prefix+"."),
		std.WithoutTelemetry())
	if err != nil {
		return nil, err
	}

	reporter.client = client
	return reporter, nil
}

// Close flushes and closes the statsd connection.
func (sd *Reporter) Close() error {
	if sd == nil || sd.client == nil {
		return nil
	}
	return sd.client.Close()
}

func (sd *Reporter) metric(name string, send func(c *std.Client, name string, tags []string, rate float64) error) *Metric {
	m := &Metric{name: name}
	if sd == nil {
		return m
	}
	m.rate = sd.config.SamplingRate
	m.logger = sd.logger
	m.withInfluxTag = sd.config.WithInfluxTagFormat
	if sd.client != nil {
		client := sd.client
		m.publishFunc = func(name string, tags []string, rate float64) error {
			return send(client, name, tags, rate)
		}
	}
	return m
}

// Incr returns a increment counter metric.
func (sd *Reporter) Incr(name string) *Metric {
	return sd.metric(name, func(c *std.Client, name string, tags []string, rate float64) error {
		return c.Incr(name, tags, rate)
	})
}

// Timing returns a timer metric.
func (sd *Reporter) Timing(name string, value time.Duration) *Metric {
	return sd.metric(name, func(c *std.Client, name string, tags []string, rate float64) error {
		return c.Timing(name, value, tags, rate)
	})
}

// Gauge creates and returns a new gauge metric.
func (sd *Reporter) Gauge(name string, value float64) *Metric {
	return sd.metric(name, func(c *std.Client, name string, tags []string, rate float64) error {
		return c.Gauge(name, value, tags, rate)
	})
}
