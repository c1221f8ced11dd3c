package statsd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goto/salt/log"
)

// Metric represents a statsd metric.
type Metric struct {
	logger        log.Logger
	name          string
	rate          float64
	tags          map[string]string
	withInfluxTag bool
	publishFunc   func(name string, tags []string, rate float64) error
}

// Success tags the metric as successful.
func (m *Metric) Success() *Metric {
	return m.Tag("success", "true")
}

// Failure tags the metric as failed. kind is a short error class such as
// "not_found"; empty means unknown.
func (m *Metric) Failure(kind string) *Metric {
	if kind == "" {
		kind = "unknown"
	}
	return m.Tag("success", "false").Tag("error", kind)
}

// Tag adds a tag to the metric.
func (m *Metric) Tag(key string, val string) *Metric {
	if m == nil {
		return nil
	}

	if m.tags == nil {
		m.tags = map[string]string{}
	}

	m.tags[key] = val
	return m
}

// Publish sends the metric in the background. Intended to be used with
// defer.
func (m *Metric) Publish() {
	if m == nil || m.publishFunc == nil {
		return
	}

	name := m.name
	var ddTags []string
	if m.withInfluxTag {
		name = m.influxName()
	} else {
		ddTags = m.datadogTags()
	}
	go func() {
		if err := m.publishFunc(name, ddTags, m.rate); err != nil && m.logger != nil {
			m.logger.Warn("failed to publish metric", "name", name, "err", err)
		}
	}()
}

func (m *Metric) sortedKeys() []string {
	keys := make([]string, 0, len(m.tags))
	for k := range m.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Metric) datadogTags() []string {
	tags := make([]string, 0, len(m.tags))
	for _, k := range m.sortedKeys() {
		tags = append(tags, fmt.Sprintf("%s:%s", k, m.tags[k]))
	}
	return tags
}

func (m *Metric) influxName() string {
	var sb strings.Builder
	sb.WriteString(m.name)
	for _, k := range m.sortedKeys() {
		fmt.Fprintf(&sb, ",%s=%s", k, m.tags[k])
	}
	return sb.String()
}
