package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for chat turns.
type ConversationMetrics struct {
	turnsTotal      *prometheus.CounterVec
	classifierTotal *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botrdv",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total chat turns handled, by resulting stage and reply status",
		}, []string{"stage", "status"}),
		classifierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botrdv",
			Subsystem: "conversation",
			Name:      "classifications_total",
			Help:      "Intent classifications by source (llm or fallback) and intent",
		}, []string{"source", "intent"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "botrdv",
			Subsystem: "conversation",
			Name:      "bookings_total",
			Help:      "Booking commit attempts by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "botrdv",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of one chat turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.classifierTotal, m.bookingsTotal, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(stage, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage, status).Inc()
	m.turnLatency.WithLabelValues(status).Observe(seconds)
}

func (m *ConversationMetrics) ObserveClassification(source, intent string) {
	if m == nil {
		return
	}
	m.classifierTotal.WithLabelValues(source, intent).Inc()
}

// ObserveBooking records a commit outcome: committed, conflict, calendar_error,
// store_error or released.
func (m *ConversationMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
