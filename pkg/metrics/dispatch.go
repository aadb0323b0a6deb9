package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes recorded per processed queue item.
const (
	OutcomeMatched = "matched"
	OutcomeRetried = "retried"
	OutcomeDropped = "dropped"
	OutcomeSkipped = "skipped"
)

// DispatchMetrics instruments the priority scheduler.
type DispatchMetrics struct {
	depth    prometheus.Gauge
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	enqueued *prometheus.CounterVec
}

// NewDispatchMetrics registers the scheduler metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "queue_depth",
		Help:      "Requests waiting in the dispatch queue.",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "outcomes_total",
		Help:      "Processed queue items by outcome.",
	}, []string{"outcome", "priority"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of a single auto-match attempt.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"priority"})
	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "enqueued_total",
		Help:      "Enqueue calls that added or raised a queue entry.",
	}, []string{"priority"})
	reg.MustRegister(depth, outcomes, duration, enqueued)
	return &DispatchMetrics{
		depth:    depth,
		outcomes: outcomes,
		duration: duration,
		enqueued: enqueued,
	}
}

// SetDepth records the current queue length.
func (d *DispatchMetrics) SetDepth(n int) {
	if d == nil || d.depth == nil {
		return
	}
	d.depth.Set(float64(n))
}

// IncOutcome counts a processed item.
func (d *DispatchMetrics) IncOutcome(outcome, priority string) {
	if d == nil || d.outcomes == nil {
		return
	}
	d.outcomes.WithLabelValues(outcome, normalizeLabel(priority)).Inc()
}

// IncEnqueued counts an accepted enqueue.
func (d *DispatchMetrics) IncEnqueued(priority string) {
	if d == nil || d.enqueued == nil {
		return
	}
	d.enqueued.WithLabelValues(normalizeLabel(priority)).Inc()
}

// ObserveAttempt records how long an auto-match took.
func (d *DispatchMetrics) ObserveAttempt(priority string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(priority)).Observe(duration.Seconds())
}
