// Package observability holds the Prometheus instrumentation for the
// scoring and dispatch pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the service.
type Metrics struct {
	DispatchRuns   *prometheus.CounterVec // labels: status={completed,skipped_low_probability}
	Deliveries     *prometheus.CounterVec // labels: outcome={delivered,failed,skipped_no_channel}
	CacheLookups   *prometheus.CounterVec // labels: result={hit,miss}
	ScoresComputed *prometheus.CounterVec // labels: tier={high,moderate,low,unlikely}

	FanoutDuration   prometheus.Histogram
	FanoutRecipients prometheus.Histogram

	RequestDuration *prometheus.HistogramVec // labels: method, path, status
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		DispatchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rainbowatch",
			Name:      "dispatch_runs_total",
			Help:      "Total dispatch calls by overall status.",
		}, []string{"status"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rainbowatch",
			Name:      "deliveries_total",
			Help:      "Per-recipient delivery attempts by terminal outcome.",
		}, []string{"outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rainbowatch",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		ScoresComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rainbowatch",
			Name:      "scores_computed_total",
			Help:      "Occurrence scores computed by recommendation tier.",
		}, []string{"tier"}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rainbowatch",
			Name:      "fanout_duration_seconds",
			Help:      "Wall time of a complete dispatch fan-out.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		FanoutRecipients: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rainbowatch",
			Name:      "fanout_recipients",
			Help:      "Number of recipients per dispatch fan-out.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rainbowatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route, and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	prometheus.MustRegister(
		m.DispatchRuns,
		m.Deliveries,
		m.CacheLookups,
		m.ScoresComputed,
		m.FanoutDuration,
		m.FanoutRecipients,
		m.RequestDuration,
	)

	return m
}

// RecordCacheLookup implements the cache.Recorder interface.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordDispatchRun counts one Dispatch call by overall status.
func (m *Metrics) RecordDispatchRun(status string) {
	m.DispatchRuns.WithLabelValues(status).Inc()
}

// RecordDelivery counts one per-recipient delivery attempt by outcome.
func (m *Metrics) RecordDelivery(outcome string) {
	m.Deliveries.WithLabelValues(outcome).Inc()
}

// ObserveFanout records the duration and recipient count of one fan-out.
func (m *Metrics) ObserveFanout(seconds float64, recipients int) {
	m.FanoutDuration.Observe(seconds)
	m.FanoutRecipients.Observe(float64(recipients))
}

// RecordScore counts one computed occurrence score by tier.
func (m *Metrics) RecordScore(tier string) {
	m.ScoresComputed.WithLabelValues(tier).Inc()
}

// RecordRequest records one HTTP request observation. Implements the
// core.MetricsCollector interface.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
