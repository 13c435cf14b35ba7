// Package metrics exposes interval manager statistics as Prometheus metrics.
//
// The collector reads a fresh snapshot from its source on every scrape, so it
// never holds stale values and needs no update calls from the mutating code.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sumatoshi-tech/idspan/pkg/itvl"
)

// DefaultNamespace prefixes every metric name unless overridden.
const DefaultNamespace = "idspan"

// Pool node states used as the "state" label.
const (
	stateLive = "live"
	stateFree = "free"
)

// StatsSource provides manager statistics. Both *itvl.Manager and
// *itvl.Locked satisfy it.
type StatsSource interface {
	Stats() itvl.Stats
}

// MetricMeta holds the common metadata of one exported metric.
type MetricMeta struct {
	MetricName        string
	MetricDescription string
	MetricLabels      []string
}

// Name returns the metric name without namespace.
func (m MetricMeta) Name() string { return m.MetricName }

// Description returns the help text.
func (m MetricMeta) Description() string { return m.MetricDescription }

// Definitions lists the metrics exported by Collector.
var Definitions = []MetricMeta{
	{MetricName: "limit", MetricDescription: "Largest identifier the manager tracks."},
	{MetricName: "available_ids", MetricDescription: "Number of available identifiers."},
	{MetricName: "used_ids", MetricDescription: "Number of used identifiers."},
	{MetricName: "intervals", MetricDescription: "Number of stored intervals of available identifiers."},
	{MetricName: "tree_height", MetricDescription: "Height of the interval tree."},
	{
		MetricName:        "pool_nodes",
		MetricDescription: "Node pool slots by state.",
		MetricLabels:      []string{"state"},
	},
}

// Collector is a prometheus.Collector over a StatsSource.
type Collector struct {
	source StatsSource
	descs  map[string]*prometheus.Desc
}

// NewCollector creates a collector reading source. An empty namespace means DefaultNamespace.
func NewCollector(namespace string, source StatsSource, constLabels prometheus.Labels) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	descs := make(map[string]*prometheus.Desc, len(Definitions))

	for _, def := range Definitions {
		descs[def.Name()] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", def.Name()),
			def.Description(),
			def.MetricLabels,
			constLabels,
		)
	}

	return &Collector{source: source, descs: descs}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, def := range Definitions {
		ch <- c.descs[def.Name()]
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	total := uint64(stats.Limit) + 1

	c.gauge(ch, "limit", float64(stats.Limit))
	c.gauge(ch, "available_ids", float64(stats.Available))
	c.gauge(ch, "used_ids", float64(total-stats.Available))
	c.gauge(ch, "intervals", float64(stats.Intervals))
	c.gauge(ch, "tree_height", float64(stats.Height))
	c.gauge(ch, "pool_nodes", float64(stats.Pool.Live), stateLive)
	c.gauge(ch, "pool_nodes", float64(stats.Pool.Free), stateFree)
}

func (c *Collector) gauge(ch chan<- prometheus.Metric, name string, value float64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.GaugeValue, value, labels...)
}
