// Package metrics - метрики Prometheus жизненного цикла инцидентов.
package metrics

import (
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

type Lifecycle struct {
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	submissions *prometheus.CounterVec
	conflicts   prometheus.Counter
	validations *prometheus.CounterVec
}

// NewLifecycle создает и регистрирует метрики в reg. Тесты передают отдельный
// prometheus.NewRegistry(), сервис - prometheus.DefaultRegisterer.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	m := &Lifecycle{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incident_transitions_total",
				Help: "Committed incident state transitions by source and target state.",
			},
			[]string{"from", "to", "event"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incident_event_outcomes_total",
				Help: "Lifecycle events by kind and outcome (applied, noop, deferred, ignored, rejected).",
			},
			[]string{"event", "outcome"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incident_chain_submissions_total",
				Help: "Verification transaction submissions by result.",
			},
			[]string{"result"},
		),
		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "incident_version_conflicts_total",
				Help: "Optimistic concurrency collisions resolved by re-reading the incident.",
			},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "incident_artifact_validations_total",
				Help: "Proof artifact validation verdicts.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.transitions, m.outcomes, m.submissions, m.conflicts, m.validations)
	return m
}

func (m *Lifecycle) Transition(from, to models.State, event models.EventKind) {
	m.transitions.WithLabelValues(from.String(), to.String(), string(event)).Inc()
}

func (m *Lifecycle) Outcome(event models.EventKind, outcome models.Outcome) {
	m.outcomes.WithLabelValues(string(event), string(outcome)).Inc()
}

// Submission: result = ok | transient | permanent
func (m *Lifecycle) Submission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Lifecycle) VersionConflict() {
	m.conflicts.Inc()
}

func (m *Lifecycle) Validation(result string) {
	m.validations.WithLabelValues(result).Inc()
}
