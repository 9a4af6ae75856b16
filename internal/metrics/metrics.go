// Package metrics holds the orchestrator's Prometheus collectors. No HTTP
// exposition endpoint is mounted (SPEC_FULL.md scopes that out); recorders
// exist so internal/kernel and internal/executor can observe their own
// behavior, ready for an operator to add a /metrics handler later.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the orchestrator records against.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec
	SessionDuration   *prometheus.HistogramVec

	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	LockWaitDuration *prometheus.HistogramVec
	LockContention   *prometheus.CounterVec

	QuotaRejections *prometheus.CounterVec
	ActiveSessions  *prometheus.GaugeVec

	AgentCircuitState *prometheus.GaugeVec
}

// New builds a Metrics instance and registers its collectors against
// registerer. Passing prometheus.DefaultRegisterer mirrors the teacher's own
// default wiring; tests should pass a fresh prometheus.NewRegistry() to
// avoid collisions across runs.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_sessions_started_total",
				Help: "Total number of sessions that entered the running state.",
			},
			[]string{"tenant", "type"},
		),
		SessionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_sessions_completed_total",
				Help: "Total number of sessions that reached a terminal state.",
			},
			[]string{"tenant", "status"},
		),
		SessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_session_duration_seconds",
				Help:    "Wall-clock duration of a session from start to terminal state.",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
			},
			[]string{"tenant", "status"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_dispatch_total",
				Help: "Total number of agent dispatch attempts.",
			},
			[]string{"agent", "external", "status"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_dispatch_duration_seconds",
				Help:    "Duration of a single agent dispatch call.",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"agent", "external"},
		),
		LockWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_lock_wait_duration_seconds",
				Help:    "Time spent waiting to acquire a distributed lock.",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 10},
			},
			[]string{"resource_kind"},
		),
		LockContention: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_lock_contention_total",
				Help: "Total number of lock acquisitions that had to queue behind another owner.",
			},
			[]string{"resource_kind"},
		),
		QuotaRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_quota_rejections_total",
				Help: "Total number of session creations rejected for exceeding a tenant quota.",
			},
			[]string{"tenant"},
		),
		ActiveSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_active_sessions",
				Help: "Current number of non-terminal sessions per tenant.",
			},
			[]string{"tenant"},
		),
		AgentCircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_agent_circuit_state",
				Help: "Current circuit breaker state per agent (0=closed, 1=half-open, 2=open).",
			},
			[]string{"agent"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.SessionsStarted,
			m.SessionsCompleted,
			m.SessionDuration,
			m.DispatchTotal,
			m.DispatchDuration,
			m.LockWaitDuration,
			m.LockContention,
			m.QuotaRejections,
			m.ActiveSessions,
			m.AgentCircuitState,
		)
	}
	return m
}

// RecordSessionStart increments SessionsStarted for tenant/type.
func (m *Metrics) RecordSessionStart(tenant, sessionType string) {
	m.SessionsStarted.WithLabelValues(tenant, sessionType).Inc()
}

// RecordSessionTerminal increments SessionsCompleted and observes
// SessionDuration for a session that just reached a terminal status.
func (m *Metrics) RecordSessionTerminal(tenant, status string, duration time.Duration) {
	m.SessionsCompleted.WithLabelValues(tenant, status).Inc()
	m.SessionDuration.WithLabelValues(tenant, status).Observe(duration.Seconds())
}

// RecordDispatch records one dispatch attempt's outcome and latency.
func (m *Metrics) RecordDispatch(agent string, external bool, status string, duration time.Duration) {
	externalLabel := "false"
	if external {
		externalLabel = "true"
	}
	m.DispatchTotal.WithLabelValues(agent, externalLabel, status).Inc()
	m.DispatchDuration.WithLabelValues(agent, externalLabel).Observe(duration.Seconds())
}

// RecordLockWait observes how long a caller waited to acquire a lock on a
// resource of the given kind ("execution", "parent", ...), and whether it
// had to queue behind another owner.
func (m *Metrics) RecordLockWait(resourceKind string, waited time.Duration, contended bool) {
	m.LockWaitDuration.WithLabelValues(resourceKind).Observe(waited.Seconds())
	if contended {
		m.LockContention.WithLabelValues(resourceKind).Inc()
	}
}

// RecordQuotaRejection increments QuotaRejections for tenant.
func (m *Metrics) RecordQuotaRejection(tenant string) {
	m.QuotaRejections.WithLabelValues(tenant).Inc()
}

// SetActiveSessions sets the current active-session gauge for tenant.
func (m *Metrics) SetActiveSessions(tenant string, count int) {
	m.ActiveSessions.WithLabelValues(tenant).Set(float64(count))
}

// SetAgentCircuitState records an agent's current breaker state (0/1/2).
func (m *Metrics) SetAgentCircuitState(agent string, state float64) {
	m.AgentCircuitState.WithLabelValues(agent).Set(state)
}
