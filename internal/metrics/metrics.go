package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking core.
type BookingMetrics struct {
	bookingsTotal        *prometheus.CounterVec
	bookingLatency       prometheus.Histogram
	availabilityTotal    *prometheus.CounterVec
	remindersTotal       *prometheus.CounterVec
	outboxDeliveredTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "careslot",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of the booking transaction",
			Buckets:   prometheus.DefBuckets,
		}),
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "availability",
			Name:      "resolutions_total",
			Help:      "Availability resolutions by result",
		}, []string{"result"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminder sends by kind and delivery result",
		}, []string{"kind", "result"}),
		outboxDeliveredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careslot",
			Subsystem: "outbox",
			Name:      "delivered_total",
			Help:      "Outbox deliveries by event type and result",
		}, []string{"type", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.availabilityTotal, m.remindersTotal, m.outboxDeliveredTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveAvailability(result string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveReminder(kind, result string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(kind, result).Inc()
}

func (m *BookingMetrics) ObserveOutboxDelivery(eventType, result string) {
	if m == nil {
		return
	}
	m.outboxDeliveredTotal.WithLabelValues(eventType, result).Inc()
}
