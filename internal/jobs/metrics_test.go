package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("mail:role_changed").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("mail:role_changed").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:role_changed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:role_changed", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("mail:role_changed")))
}

func TestCountersIgnoreEmptyInput(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.NotificationSent("role_changed")
	m.NotificationSent("")
	m.AddPurged("sessions", 3)
	m.AddPurged("sessions", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("role_changed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged.WithLabelValues("sessions")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		_ = m.Track("x").End(nil)
		m.NotificationSent("role_changed")
		m.AddPurged("sessions", 1)
	})
}
