package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventsReceived    *prometheus.CounterVec
	SyncsTotal        *prometheus.CounterVec
	TagUpdateFailures prometheus.Counter
	SyncDuration      prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chimplink_events_received_total",
			Help: "Webhook events received, by provider and event kind",
		}, []string{"provider", "event"}),
		SyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chimplink_syncs_total",
			Help: "Sync engine outcomes, by result status",
		}, []string{"status"}),
		TagUpdateFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chimplink_tag_update_failures_total",
			Help: "Tag mutations rejected by the contact-list API",
		}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chimplink_sync_duration_seconds",
			Help:    "End-to-end latency of one sync operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveSync records one engine outcome.
func (m *Metrics) ObserveSync(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(status).Inc()
	m.SyncDuration.Observe(elapsed.Seconds())
}

// IncEventReceived records an inbound webhook event.
func (m *Metrics) IncEventReceived(provider, event string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(provider, event).Inc()
}

// IncTagUpdateFailure records a rejected tag mutation.
func (m *Metrics) IncTagUpdateFailure() {
	if m == nil {
		return
	}
	m.TagUpdateFailures.Inc()
}
