package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	t.Run("RecordResolve", func(t *testing.T) {
		exporter.RecordResolve("schedule", "ready_to_create", 100*time.Millisecond)
		exporter.RecordResolve("schedule", "ready_to_create", 200*time.Millisecond)
		exporter.RecordResolve("cancel", "ambiguous_match", 150*time.Millisecond)

		assert.Equal(t, 2.0, testutil.ToFloat64(exporter.resolveTotal.WithLabelValues("schedule", "ready_to_create")))
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.resolveTotal.WithLabelValues("cancel", "ambiguous_match")))
	})

	t.Run("RecordUpstreamError", func(t *testing.T) {
		exporter.RecordUpstreamError("checkBusy", "timeout")
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.upstreamErrors.WithLabelValues("checkBusy", "timeout")))
	})

	t.Run("RecordLowConfidence", func(t *testing.T) {
		exporter.RecordLowConfidence("fallback")
		exporter.RecordLowConfidence("fallback")
		assert.Equal(t, 2.0, testutil.ToFloat64(exporter.lowConfidence.WithLabelValues("fallback")))
	})

	t.Run("InFlight", func(t *testing.T) {
		done := exporter.IncInFlight()
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.inFlight))
		done()
		assert.Equal(t, 0.0, testutil.ToFloat64(exporter.inFlight))

		exporter.RecordRejected()
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.rejected))
	})
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	exporter.RecordResolve("query", "events", 10*time.Millisecond)
	exporter.RecordUpstreamError("listEvents", "failure")
	exporter.RecordLowConfidence("fallback")
	exporter.ObserveSlotCandidates(3)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	exporter.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"slotsense_scheduler_resolve_total",
		"slotsense_scheduler_resolve_latency_seconds",
		"slotsense_scheduler_upstream_errors_total",
		"slotsense_scheduler_low_confidence_total",
		"slotsense_scheduler_slot_candidates",
	} {
		assert.Contains(t, body, name)
	}
}

func TestCustomRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter := NewPrometheusExporter(Config{Registry: registry})

	assert.Same(t, registry, exporter.GetRegistry())
	assert.Panics(t, func() { NewPrometheusExporter(Config{Registry: registry}) }, "metrics register once per registry")
}
