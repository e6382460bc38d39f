package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcomes.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ChargeSyncMetrics counts reconciliation outcomes, conflict retries and
// processed webhook events.
type ChargeSyncMetrics struct {
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
	duration prometheus.Histogram
	webhooks *prometheus.CounterVec
}

func NewChargeSyncMetrics(reg prometheus.Registerer) *ChargeSyncMetrics {
	if reg == nil {
		return &ChargeSyncMetrics{}
	}
	m := &ChargeSyncMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_sync_total",
			Help:      "Charge reconciliations by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_sync_conflict_retries_total",
			Help:      "Charge reconciliations retried after a write conflict.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "charge_sync_duration_seconds",
			Help:      "Wall time of a charge reconciliation including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_events_total",
			Help:      "Stripe webhook events by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(m.outcomes, m.retries, m.duration, m.webhooks)
	return m
}

// ObserveOutcome records one finished sync.
func (m *ChargeSyncMetrics) ObserveOutcome(outcome string, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *ChargeSyncMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

// IncWebhook records a webhook event; result is processed, duplicate,
// ignored or failed.
func (m *ChargeSyncMetrics) IncWebhook(eventType, result string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
