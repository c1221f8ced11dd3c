package statsd

import (
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricTags(t *testing.T) {
	m := &Metric{name: "provider.rpc"}
	m.Tag("resource", "asset").Tag("op", "create").Failure("not_found")

	assert.Equal(t, "provider.rpc,error=not_found,op=create,resource=asset,success=false", m.influxName())
	assert.Equal(t, []string{"error:not_found", "op:create", "resource:asset", "success:false"}, m.datadogTags())
}

func TestDisabledReporterDropsMetrics(t *testing.T) {
	r, err := Init(log.NewNoop(), Config{Enabled: false})
	require.NoError(t, err)

	m := r.Timing("provider.rpc", time.Millisecond).Success()
	assert.Nil(t, m.publishFunc)
	m.Publish()
	assert.NoError(t, r.Close())
}

func TestNilReporter(t *testing.T) {
	var r *Reporter
	r.Incr("provider.rpc").Tag("op", "read").Publish()
	assert.NoError(t, r.Close())
}

func TestPublish(t *testing.T) {
	published := make(chan string, 1)
	m := &Metric{
		name:          "provider.rpc",
		withInfluxTag: true,
		publishFunc: func(name string, _ []string, _ float64) error {
			published <- name
			return nil
		},
	}
	m.Tag("op", "delete").Success().Publish()

	select {
	case name := <-published:
		assert.Equal(t, "provider.rpc,op=delete,success=true", name)
	case <-time.After(time.Second):
		t.Fatal("metric was not published")
	}
}
