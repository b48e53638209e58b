// Package metrics registers the Prometheus instruments shared across the
// engine, sweeper and dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	Transitions    *prometheus.CounterVec
	GatewayCalls   *prometheus.CounterVec
	GatewayLatency *prometheus.HistogramVec
	SweepRuns      *prometheus.CounterVec
	SweepExpired   *prometheus.CounterVec
	SweepFailures  *prometheus.CounterVec
	DeadLetters    *prometheus.CounterVec
	EmitFailures   *prometheus.CounterVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on a caller-supplied registerer so tests can use
// isolated registries.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_transitions_total",
			Help: "Lifecycle transitions by family, command and outcome",
		}, []string{"family", "command", "outcome"}),
		GatewayCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_gateway_calls_total",
			Help: "Registry gateway calls by family, command and outcome",
		}, []string{"family", "command", "outcome"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixcore_gateway_call_duration_seconds",
			Help:    "Registry gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"family"}),
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_sweep_runs_total",
			Help: "Expiration sweep executions by family",
		}, []string{"family"}),
		SweepExpired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_sweep_expired_total",
			Help: "Entities expired by the sweeper",
		}, []string{"family"}),
		SweepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_sweep_failures_total",
			Help: "Per-entity transition failures during sweeps",
		}, []string{"family"}),
		DeadLetters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_dead_letters_total",
			Help: "Messages routed to the dead-letter topic by family and error code",
		}, []string{"family", "code"}),
		EmitFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pixcore_emit_failures_total",
			Help: "Domain event emission failures (non-fatal)",
		}, []string{"family"}),
	}
}

func (m *Metrics) IncTransition(family, command, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(family, command, outcome).Inc()
}

func (m *Metrics) IncGatewayCall(family, command, outcome string) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(family, command, outcome).Inc()
}

func (m *Metrics) ObserveGatewayLatency(family string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(family).Observe(seconds)
}

func (m *Metrics) IncSweepRun(family string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(family).Inc()
}

func (m *Metrics) AddSweepExpired(family string, n int) {
	if m == nil {
		return
	}
	m.SweepExpired.WithLabelValues(family).Add(float64(n))
}

func (m *Metrics) AddSweepFailures(family string, n int) {
	if m == nil {
		return
	}
	m.SweepFailures.WithLabelValues(family).Add(float64(n))
}

func (m *Metrics) IncDeadLetter(family, code string) {
	if m == nil {
		return
	}
	m.DeadLetters.WithLabelValues(family, code).Inc()
}

func (m *Metrics) IncEmitFailure(family string) {
	if m == nil {
		return
	}
	m.EmitFailures.WithLabelValues(family).Inc()
}
