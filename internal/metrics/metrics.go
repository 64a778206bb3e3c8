// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the fetcher and aggregator report to.
type Recorder interface {
	RecordFetch(kind string, err error)
	RecordCacheLookup(kind string, hit bool)
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordSchemaFailure(kind string)
	RecordAggregate(items int, err error)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	fetches       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	schemaFail    *prometheus.CounterVec
	aggregates    *prometheus.CounterVec
	itemsReturned prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancal_upstream_fetch_total",
			Help: "Upstream fetches by document kind and outcome.",
		}, []string{"kind", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancal_cache_lookup_total",
			Help: "Response cache lookups by document kind and result.",
		}, []string{"kind", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancal_upstream_http_status_total",
			Help: "Upstream responses by HTTP status code.",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plancal_upstream_fetch_latency_seconds",
			Help:    "Latency of upstream fetches that missed the cache.",
			Buckets: prometheus.DefBuckets,
		}),
		schemaFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancal_schema_fail_total",
			Help: "Upstream documents rejected by the parser.",
		}, []string{"kind"}),
		aggregates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plancal_aggregate_total",
			Help: "Aggregate schedule builds by outcome.",
		}, []string{"outcome"}),
		itemsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plancal_aggregate_items",
			Help:    "Items in successfully built aggregates.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}

	reg.MustRegister(
		c.fetches,
		c.cacheLookups,
		c.httpStatus,
		c.fetchLatency,
		c.schemaFail,
		c.aggregates,
		c.itemsReturned,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) RecordFetch(kind string, err error) {
	c.fetches.WithLabelValues(kind, outcome(err)).Inc()
}

func (c *Collector) RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordSchemaFailure(kind string) {
	c.schemaFail.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordAggregate(items int, err error) {
	c.aggregates.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		c.itemsReturned.Observe(float64(items))
	}
}

// Nop discards everything. It is the default when no Collector is wired.
type Nop struct{}

func (Nop) RecordFetch(string, error)        {}
func (Nop) RecordCacheLookup(string, bool)   {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordFetchLatency(time.Duration) {}
func (Nop) RecordSchemaFailure(string)       {}
func (Nop) RecordAggregate(int, error)       {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
