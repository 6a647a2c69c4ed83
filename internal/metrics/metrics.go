// Package metrics holds the Prometheus instruments of the consultation service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consult"

// Metrics holds all custom Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionsCreated prometheus.Counter
	SessionsEvicted *prometheus.CounterVec
	SessionsActive  prometheus.Gauge

	Turns        *prometheus.CounterVec
	Questions    *prometheus.CounterVec
	Evaluations  *prometheus.CounterVec
	JudgeCalls   *prometheus.CounterVec
	JudgeLatency prometheus.Histogram
	Recoveries   *prometheus.CounterVec
	Outcomes     *prometheus.CounterVec

	HandoffErrors *prometheus.CounterVec
	RateLimited   prometheus.Counter
	WSConnections prometheus.Gauge
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Consultation sessions created",
		}),
		SessionsEvicted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Consultation sessions removed from memory by reason",
		}, []string{"reason"}), // reason: expired, completed, cancelled
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Consultation sessions currently held in memory",
		}),

		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns processed by resulting stage",
		}, []string{"stage"}),
		Questions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions asked by topic and kind",
		}, []string{"question_type", "kind"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Completeness evaluations by path and verdict",
		}, []string{"path", "verdict"}),
		JudgeCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "judge_calls_total",
			Help:      "Model-assisted judge calls by provider and result",
		}, []string{"provider", "result"}),
		JudgeLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "judge_duration_seconds",
			Help:      "Model-assisted judge latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		Recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recoveries_total",
			Help:      "Error recoveries by error kind and action",
		}, []string{"kind", "action"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Consultations reaching a terminal stage",
		}, []string{"stage", "forced"}),

		HandoffErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_errors_total",
			Help:      "Failed brief handoffs by publisher",
		}, []string{"publisher"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Open consultation WebSocket connections",
		}),
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionCreated records a new session.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// SessionEvicted records a session leaving memory.
func (m *Metrics) SessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.SessionsEvicted.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

// TurnProcessed records a turn ending in stage.
func (m *Metrics) TurnProcessed(stage string) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(stage).Inc()
}

// QuestionAsked records a question.
func (m *Metrics) QuestionAsked(questionType, kind string) {
	if m == nil {
		return
	}
	m.Questions.WithLabelValues(questionType, kind).Inc()
}

// Evaluated records a completeness verdict.
func (m *Metrics) Evaluated(path string, ready bool) {
	if m == nil {
		return
	}
	verdict := "not_ready"
	if ready {
		verdict = "ready"
	}
	m.Evaluations.WithLabelValues(path, verdict).Inc()
}

// JudgeCalled records one judge call and its latency.
func (m *Metrics) JudgeCalled(provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JudgeCalls.WithLabelValues(provider, result).Inc()
	m.JudgeLatency.Observe(seconds)
}

// Recovered records an error recovery decision.
func (m *Metrics) Recovered(kind, action string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(kind, action).Inc()
}

// Finished records a consultation reaching a terminal stage.
func (m *Metrics) Finished(stage string, forced bool) {
	if m == nil {
		return
	}
	f := "false"
	if forced {
		f = "true"
	}
	m.Outcomes.WithLabelValues(stage, f).Inc()
}

// HandoffFailed records a failed brief publish.
func (m *Metrics) HandoffFailed(publisher string) {
	if m == nil {
		return
	}
	m.HandoffErrors.WithLabelValues(publisher).Inc()
}

// RateLimitHit records a throttled request.
func (m *Metrics) RateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// WSOpened and WSClosed track live WebSocket connections.
func (m *Metrics) WSOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) WSClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
