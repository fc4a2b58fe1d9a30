package metrics

import "github.com/prometheus/client_golang/prometheus"

// Booking outcome labels.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// ConversationMetrics exposes counters for the chat and scheduling flows.
type ConversationMetrics struct {
	turnsTotal       prometheus.Counter
	llmFailuresTotal prometheus.Counter
	parseFailures    prometheus.Counter
	intentsTotal     *prometheus.CounterVec
	bookingsTotal    *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretaria",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed chat turns",
		}),
		llmFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretaria",
			Subsystem: "conversation",
			Name:      "llm_failures_total",
			Help:      "Total completion API failures",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "secretaria",
			Subsystem: "conversation",
			Name:      "intent_parse_failures_total",
			Help:      "Total malformed intent payloads in LLM replies",
		}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretaria",
			Subsystem: "conversation",
			Name:      "intents_total",
			Help:      "Total extracted scheduling intents",
		}, []string{"action"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "secretaria",
			Subsystem: "schedule",
			Name:      "bookings_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.turnsTotal,
			m.llmFailuresTotal,
			m.parseFailures,
			m.intentsTotal,
			m.bookingsTotal,
		)
	}
	return m
}

func (m *ConversationMetrics) Turn() {
	if m == nil {
		return
	}
	m.turnsTotal.Inc()
}

func (m *ConversationMetrics) LLMFailure() {
	if m == nil {
		return
	}
	m.llmFailuresTotal.Inc()
}

func (m *ConversationMetrics) ParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

func (m *ConversationMetrics) Intent(action string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(action).Inc()
}

func (m *ConversationMetrics) Booking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
