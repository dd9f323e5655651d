// Package metrics provides Prometheus metrics export for the scheduler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "slotsense"
	subsystem = "scheduler"
)

// PrometheusExporter exports scheduler metrics in Prometheus format.
// It implements scheduler.Recorder.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Resolve metrics
	resolveTotal   *prometheus.CounterVec
	resolveLatency *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	rejected       prometheus.Counter

	upstreamErrors *prometheus.CounterVec
	lowConfidence  *prometheus.CounterVec
	slotCandidates prometheus.Histogram
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolve_total",
			Help:      "Total number of resolve turns by operation and outcome",
		},
		[]string{"operation", "decision"},
	)

	e.resolveLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolve_latency_seconds",
			Help:      "Resolve turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_in_flight",
			Help:      "Number of resolve requests being processed",
		},
	)

	e.rejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_rejected_total",
			Help:      "Requests rejected because the concurrency limit was reached",
		},
	)

	e.upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "upstream_errors_total",
			Help:      "Failed collaborator calls by operation and kind",
		},
		[]string{"op", "kind"},
	)

	e.lowConfidence = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "low_confidence_total",
			Help:      "Intents flagged as low confidence by extractor source",
		},
		[]string{"source"},
	)

	e.slotCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slot_candidates",
			Help:      "Number of slots proposed per search",
			Buckets:   []float64{0, 1, 2, 3, 5, 10},
		},
	)

	registry.MustRegister(
		e.resolveTotal,
		e.resolveLatency,
		e.inFlight,
		e.rejected,
		e.upstreamErrors,
		e.lowConfidence,
		e.slotCandidates,
	)

	return e
}

// RecordResolve records one finished turn.
func (e *PrometheusExporter) RecordResolve(operation, decision string, latency time.Duration) {
	e.resolveTotal.WithLabelValues(operation, decision).Inc()
	e.resolveLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordUpstreamError records a failed or timed-out collaborator call.
func (e *PrometheusExporter) RecordUpstreamError(op, kind string) {
	e.upstreamErrors.WithLabelValues(op, kind).Inc()
}

// RecordLowConfidence records a flagged intent.
func (e *PrometheusExporter) RecordLowConfidence(source string) {
	e.lowConfidence.WithLabelValues(source).Inc()
}

// ObserveSlotCandidates records the size of one slot search result.
func (e *PrometheusExporter) ObserveSlotCandidates(n int) {
	e.slotCandidates.Observe(float64(n))
}

// IncInFlight marks a request as started and returns the func that ends it.
func (e *PrometheusExporter) IncInFlight() func() {
	e.inFlight.Inc()
	return e.inFlight.Dec
}

// RecordRejected records a request turned away by the concurrency limit.
func (e *PrometheusExporter) RecordRejected() {
	e.rejected.Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
