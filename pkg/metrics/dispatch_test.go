package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDispatchMetricsExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.SetDepth(4)
	m.IncOutcome(OutcomeMatched, "sos")
	m.IncOutcome(OutcomeMatched, "sos")
	m.IncOutcome(OutcomeRetried, "")
	m.IncEnqueued("high")
	m.ObserveAttempt("sos", 40*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	depth := findMetricFamily(mfs, "relief_dispatch_queue_depth")
	require.NotNil(t, depth)
	require.Equal(t, 4.0, depth.GetMetric()[0].GetGauge().GetValue())

	got, err := fetchCounterValue(mfs, "relief_dispatch_outcomes_total", "outcome", OutcomeMatched)
	require.NoError(t, err)
	require.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "relief_dispatch_outcomes_total", "priority", "unknown")
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "relief_dispatch_enqueued_total", "priority", "high")
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	sum, err := fetchHistogramSum(mfs, "relief_dispatch_attempt_duration_seconds", "priority", "sos")
	require.NoError(t, err)
	require.Greater(t, sum, 0.0)
}

func TestNilDispatchMetricsAreNoops(t *testing.T) {
	var m *DispatchMetrics
	m.SetDepth(1)
	m.IncOutcome(OutcomeDropped, "low")
	m.IncEnqueued("low")
	m.ObserveAttempt("low", time.Second)

	unregistered := NewDispatchMetrics(nil)
	unregistered.SetDepth(2)
	unregistered.IncOutcome(OutcomeSkipped, "low")
}

func TestHTTPMetricsUseRouteLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("POST", "/api/v1/requests/{requestId}/auto-match", 200, 10*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "relief_http_request_duration_seconds", "route", "/api/v1/requests/{requestId}/auto-match")
	require.NoError(t, err)
	require.Greater(t, sum, 0.0)

	var nilMetrics *HTTPMetrics
	require.NotPanics(t, func() { nilMetrics.ObserveRequest("GET", "/", 200, time.Millisecond) })
}
