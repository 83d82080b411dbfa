package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking lifecycle.
// All observe methods are nil-safe so callers can run without metrics wired.
type BookingMetrics struct {
	createTotal     *prometheus.CounterVec
	cancelTotal     *prometheus.CounterVec
	checkinTotal    *prometheus.CounterVec
	createLatency   prometheus.Histogram
	negativeCounts  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "create_total",
			Help:      "Total booking create attempts by outcome",
		}, []string{"outcome"}),
		cancelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancel_total",
			Help:      "Total booking cancellations by outcome",
		}, []string{"outcome"}),
		checkinTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "checkin_total",
			Help:      "Total check-in attempts by outcome",
		}, []string{"outcome"}),
		createLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "create_latency_seconds",
			Help:      "Latency of booking creation including slot locking",
			Buckets:   prometheus.DefBuckets,
		}),
		negativeCounts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "negative_remaining_total",
			Help:      "Times a slot count exceeded capacity and remaining was clamped to zero",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createTotal, m.cancelTotal, m.checkinTotal, m.createLatency, m.negativeCounts)
	return m
}

func (m *BookingMetrics) ObserveCreate(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.createTotal.WithLabelValues(outcome).Inc()
	m.createLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveCancel(outcome string) {
	if m == nil {
		return
	}
	m.cancelTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCheckIn(outcome string) {
	if m == nil {
		return
	}
	m.checkinTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveNegativeRemaining() {
	if m == nil {
		return
	}
	m.negativeCounts.Inc()
}
