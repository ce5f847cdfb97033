package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WidgetMetrics exposes counters/histograms for the booking widget.
type WidgetMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	guardVerdicts     *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "bookings_total",
			Help:      "Booking engine operations by outcome",
		}, []string{"operation", "outcome"}),
		guardVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "guard_verdicts_total",
			Help:      "Conversation guard verdicts",
		}, []string{"verdict", "reason"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and status",
		}, []string{"channel", "status"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "widget",
			Name:      "operation_seconds",
			Help:      "Latency of widget operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.guardVerdicts, m.notificationsSent, m.operationLatency)
	return m
}

func (m *WidgetMetrics) ObserveBooking(operation, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *WidgetMetrics) ObserveGuardVerdict(verdict, reason string) {
	if m == nil {
		return
	}
	m.guardVerdicts.WithLabelValues(verdict, reason).Inc()
}

func (m *WidgetMetrics) ObserveNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(channel, status).Inc()
}

func (m *WidgetMetrics) ObserveLatency(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(d.Seconds())
}
