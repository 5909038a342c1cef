package prometheus

import (
	"net/http"

	caseAuth "github.com/MrEthical07/caseAuth"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by [*caseAuth.Engine].
type MetricsSource interface {
	MetricsSnapshot() caseAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Collector implements prometheus.Collector over a [MetricsSource].
type Collector struct {
	source   MetricsSource
	counters []*prom.Desc
	latency  *prom.Desc
	dropped  *prom.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source MetricsSource) *Collector {
	c := &Collector{
		source:   source,
		counters: make([]*prom.Desc, len(counterDefs)),
		latency:  prom.NewDesc(latencyName, latencyHelp, nil, nil),
		dropped:  prom.NewDesc(droppedName, droppedHelp, nil, nil),
	}
	for i, def := range counterDefs {
		c.counters[i] = prom.NewDesc(def.name, def.help, nil, nil)
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d
	}
	ch <- c.latency
	ch <- c.dropped
}

// Collect emits nothing when the engine has metrics disabled.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return
	}

	for i, def := range counterDefs {
		ch <- prom.MustNewConstMetric(c.counters[i], prom.CounterValue, float64(snapshot.Counters[def.id]))
	}

	if raw, ok := snapshot.Histograms[caseAuth.MetricLoginLatency]; ok {
		buckets, count := cumulativeBuckets(raw)
		// sum is not tracked by the engine
		ch <- prom.MustNewConstHistogram(c.latency, count, 0, buckets)
	}

	ch <- prom.MustNewConstMetric(c.dropped, prom.CounterValue, float64(c.source.AuditDropped()))
}

// Handler serves the collector from a private registry.
func (c *Collector) Handler() http.Handler {
	reg := prom.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{DisableCompression: true})
}
