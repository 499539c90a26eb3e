package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Passes           *prometheus.CounterVec
	PassFailures     *prometheus.CounterVec
	MessagesHandled  *prometheus.CounterVec
	Classifications  *prometheus.CounterVec
	DraftsCreated    prometheus.Counter
	PromotionsSwept  prometheus.Counter
	Notifications    *prometheus.CounterVec
	CompletionTime   prometheus.Histogram
	PassDuration     prometheus.Histogram
	WatchedAccounts  prometheus.Gauge
	DraftQueueLength prometheus.Gauge
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Passes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_sync_passes_total",
			Help: "Total number of committed sync passes by trigger",
		}, []string{"trigger"}),
		PassFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_sync_pass_failures_total",
			Help: "Total number of sync passes that did not commit",
		}, []string{"trigger"}),
		MessagesHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_messages_total",
			Help: "Messages seen by sync passes by outcome",
		}, []string{"outcome"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_classifications_total",
			Help: "Classified messages by category",
		}, []string{"category"}),
		DraftsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "inboxpilot_drafts_created_total",
			Help: "Total number of reply drafts created",
		}),
		PromotionsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "inboxpilot_promotions_swept_total",
			Help: "Total number of expired promotions removed",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "inboxpilot_notifications_total",
			Help: "Push notifications received by result",
		}, []string{"result"}),
		CompletionTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "inboxpilot_completion_duration_seconds",
			Help:    "Time spent waiting for the language model",
			Buckets: prometheus.DefBuckets,
		}),
		PassDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "inboxpilot_sync_pass_duration_seconds",
			Help:    "Wall time of a sync pass",
			Buckets: prometheus.DefBuckets,
		}),
		WatchedAccounts: f.NewGauge(prometheus.GaugeOpts{
			Name: "inboxpilot_watched_accounts",
			Help: "Accounts with push notifications armed",
		}),
		DraftQueueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "inboxpilot_draft_notification_queue_length",
			Help: "Draft notifications waiting to be pushed",
		}),
	}
}

func (m *Metrics) PassCommitted(trigger string, seconds float64) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(trigger).Inc()
	m.PassDuration.Observe(seconds)
}

func (m *Metrics) PassFailed(trigger string) {
	if m == nil {
		return
	}
	m.PassFailures.WithLabelValues(trigger).Inc()
}

func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.MessagesHandled.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Classified(category string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(category).Inc()
}

func (m *Metrics) Draft() {
	if m == nil {
		return
	}
	m.DraftsCreated.Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PromotionsSwept.Add(float64(n))
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Completion(seconds float64) {
	if m == nil {
		return
	}
	m.CompletionTime.Observe(seconds)
}

func (m *Metrics) WatchChanged(delta int) {
	if m == nil {
		return
	}
	m.WatchedAccounts.Add(float64(delta))
}

func (m *Metrics) SetDraftQueue(n int) {
	if m == nil {
		return
	}
	m.DraftQueueLength.Set(float64(n))
}
