package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWidgetMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWidgetMetrics(reg)
	m.ObserveBooking("create", "ok")
	m.ObserveBooking("create", "ok")
	m.ObserveBooking("modify", "within_cutoff")
	m.ObserveGuardVerdict("unclear", "gibberish")
	m.ObserveNotification("email", "sent")
	m.ObserveLatency("create", 25*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	bookings := byName["widget_bookings_total"]
	require.NotNil(t, bookings)
	var createOK float64
	for _, metric := range bookings.GetMetric() {
		if labelValue(metric, "operation") == "create" && labelValue(metric, "outcome") == "ok" {
			createOK = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), createOK)

	assert.NotNil(t, byName["widget_guard_verdicts_total"])
	assert.NotNil(t, byName["widget_notifications_total"])
	latency := byName["widget_operation_seconds"]
	require.NotNil(t, latency)
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestWidgetMetricsNilSafe(t *testing.T) {
	var m *WidgetMetrics
	m.ObserveBooking("create", "ok")
	m.ObserveGuardVerdict("accept", "")
	m.ObserveNotification("sms", "failed")
	m.ObserveLatency("verify", time.Second)
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}
