package observability

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "stepwise"

// Metrics collects Prometheus metrics from lifecycle events.
type Metrics struct {
	decisions    *prometheus.CounterVec
	decisionTime *prometheus.HistogramVec
	stepVisits   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	flows        *prometheus.CounterVec
	errors       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decisions_total",
			Help:      "Oracle decisions by step, action and outcome.",
		}, []string{"step_id", "action", "outcome"}),
		decisionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "decision_duration_seconds",
			Help:      "Latency of oracle calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"step_id"}),
		stepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "step_visits_total",
			Help:      "Total number of step entries.",
		}, []string{"step_id"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool_name", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool_name"}),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_transitions_total",
			Help:      "Flow entries and exits.",
		}, []string{"flow_id", "direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Recovered errors and hard stops.",
		}, []string{"step_id", "fatal"}),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.decisionTime, m.stepVisits, m.toolCalls, m.toolDuration, m.flows, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDecision: func(_ context.Context, e *domain.DecisionEvent) {
			outcome := "accepted"
			if e.Rejected {
				outcome = "rejected"
			}
			m.decisions.WithLabelValues(e.StepID, string(e.Action), outcome).Inc()
			m.decisionTime.WithLabelValues(e.StepID).Observe(e.Latency.Seconds())
		},
		OnStepEnter: func(_ context.Context, e *domain.StepEvent) {
			m.stepVisits.WithLabelValues(e.StepID).Inc()
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.toolCalls.WithLabelValues(e.ToolName, outcome).Inc()
			m.toolDuration.WithLabelValues(e.ToolName).Observe(e.Duration.Seconds())
		},
		OnFlowEnter: func(_ context.Context, e *domain.FlowEvent) {
			m.flows.WithLabelValues(e.FlowID, "enter").Inc()
		},
		OnFlowExit: func(_ context.Context, e *domain.FlowEvent) {
			m.flows.WithLabelValues(e.FlowID, "exit").Inc()
		},
		OnError: func(_ context.Context, e *domain.ErrorEvent) {
			fatal := "false"
			if e.Fatal {
				fatal = "true"
			}
			m.errors.WithLabelValues(e.StepID, fatal).Inc()
		},
	}
}
