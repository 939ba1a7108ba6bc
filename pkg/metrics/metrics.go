// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	LookupsTotal         *prometheus.CounterVec
	LookupLatency        *prometheus.HistogramVec
	LookupResultsCount   *prometheus.HistogramVec
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     prometheus.Counter
	DatasetRecords       *prometheus.GaugeVec
	DatasetReloadsTotal  *prometheus.CounterVec
	DatasetGeneration    prometheus.Gauge
	DatasetLoadDuration  *prometheus.HistogramVec
	RateLimitedTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookups_total",
				Help: "Total collection lookups by kind and outcome (hit, zero_result, error).",
			},
			[]string{"kind", "outcome"},
		),
		LookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lookup_latency_seconds",
				Help:    "Collection lookup latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"kind"},
		),
		LookupResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lookup_results_count",
				Help:    "Number of records returned per lookup.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 10000},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of response cache hits by tier.",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of response cache misses.",
			},
		),
		DatasetRecords: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataset_records",
				Help: "Number of records loaded per collection.",
			},
			[]string{"kind"},
		),
		DatasetReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dataset_reloads_total",
				Help: "Total dataset reloads by status.",
			},
			[]string{"status"},
		),
		DatasetGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataset_generation",
				Help: "Generation of the collections currently served.",
			},
		),
		DatasetLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dataset_load_duration_seconds",
				Help:    "Time spent loading and indexing one collection.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_total",
				Help: "Total requests rejected by the rate limiter.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.LookupsTotal,
		m.LookupLatency,
		m.LookupResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DatasetRecords,
		m.DatasetReloadsTotal,
		m.DatasetGeneration,
		m.DatasetLoadDuration,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler serves gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
