package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the chat pipeline. A nil *Metrics is valid
// and records nothing, which keeps tests and tools free of registry setup.
type Metrics struct {
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	busyRejections  prometheus.Counter
	activeSessions  prometheus.Gauge
	eventsDelivered *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_portal_llm_calls_total",
				Help: "Total number of provider attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		providerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "study_portal_llm_call_duration_seconds",
				Help:    "Provider attempt duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_portal_chat_turns_total",
				Help: "Total number of orchestrated turns by mode and result",
			},
			[]string{"mode", "result"},
		),
		turnLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "study_portal_chat_turn_duration_seconds",
				Help:    "End-to-end orchestration duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		busyRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "study_portal_session_busy_total",
				Help: "Messages rejected because the session already had one in flight",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "study_portal_active_sessions",
				Help: "Number of sessions held in memory",
			},
		),
		eventsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "study_portal_turn_events_total",
				Help: "Turn events forwarded to push channels by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
	}

	reg.MustRegister(
		m.providerCalls,
		m.providerLatency,
		m.turns,
		m.turnLatency,
		m.busyRejections,
		m.activeSessions,
		m.eventsDelivered,
	)
	return m
}

func (m *Metrics) ObserveProviderCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveTurn(mode, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(mode, result).Inc()
	m.turnLatency.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *Metrics) IncBusy() {
	if m == nil {
		return
	}
	m.busyRejections.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) ObserveEvent(sink, outcome string) {
	if m == nil {
		return
	}
	m.eventsDelivered.WithLabelValues(sink, outcome).Inc()
}
