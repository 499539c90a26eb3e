package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.PassCommitted("manual", 0.2)
	m.PassCommitted("manual", 0.1)
	m.PassFailed("push")
	m.Classified("Receipts")
	m.Swept(3)
	m.Swept(0)
	m.WatchChanged(1)
	m.WatchChanged(1)
	m.WatchChanged(-1)
	m.SetDraftQueue(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Passes.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassFailures.WithLabelValues("push")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Classifications.WithLabelValues("Receipts")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PromotionsSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatchedAccounts))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.DraftQueueLength))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PassCommitted("manual", 1)
		m.PassFailed("manual")
		m.Message("classified")
		m.Classified("Others")
		m.Draft()
		m.Swept(1)
		m.Notification("ok")
		m.Completion(1)
		m.WatchChanged(1)
		m.SetDraftQueue(1)
	})
}
