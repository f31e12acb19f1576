// Package metrics defines the Prometheus metric collectors used by the loan
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the services.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	PredictionsTotal      *prometheus.CounterVec
	PredictionLatency     *prometheus.HistogramVec
	ApprovalProbability   prometheus.Histogram
	UnseenCategoriesTotal *prometheus.CounterVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	AssistantQueriesTotal *prometheus.CounterVec
	ModelLoaded           prometheus.Gauge
	AuditEventsTotal      *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with a fresh registry that
// also carries the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
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
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_predictions_total",
				Help: "Total predictions by outcome (approved, rejected, error).",
			},
			[]string{"outcome"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_prediction_latency_seconds",
				Help:    "Prediction latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
			},
			[]string{"cache_status"},
		),
		ApprovalProbability: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loan_approval_probability",
				Help:    "Distribution of positive-class probabilities returned.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),
		UnseenCategoriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_unseen_categories_total",
				Help: "Categorical values seen at inference that were absent at fit time.",
			},
			[]string{"column"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_prediction_cache_hits_total",
				Help: "Total number of prediction cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_prediction_cache_misses_total",
				Help: "Total number of prediction cache misses.",
			},
		),
		AssistantQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_assistant_queries_total",
				Help: "Policy assistant queries by result (answered, fallback, missing_document).",
			},
			[]string{"result"},
		),
		ModelLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loan_model_loaded",
				Help: "1 when a fitted pipeline is loaded, 0 otherwise.",
			},
		),
		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_audit_events_total",
				Help: "Audit events by stage (tracked, dropped, published, publish_failed, consumed).",
			},
			[]string{"stage"},
		),
		gatherer: gatherer,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.PredictionLatency,
		m.ApprovalProbability,
		m.UnseenCategoriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.AssistantQueriesTotal,
		m.ModelLoaded,
		m.AuditEventsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
