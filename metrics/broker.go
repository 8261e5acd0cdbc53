/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// BrokerMetrics instruments the policy broker's evaluation and reload paths.
type BrokerMetrics struct {
	DecisionsTotal   *prometheus.CounterVec
	EvalDuration     *prometheus.HistogramVec
	ReloadsTotal     *prometheus.CounterVec
	ApprovalsTotal   *prometheus.CounterVec
	ActivePolicyInfo *prometheus.GaugeVec
}

// NewBrokerMetrics creates and registers broker metrics on the package
// Registry.
func NewBrokerMetrics() *BrokerMetrics {
	return newBrokerMetricsOn(Registry)
}

func newBrokerMetricsOn(reg prometheus.Registerer) *BrokerMetrics {
	m := &BrokerMetrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "broker", Name: "decisions_total",
			Help: "Policy decisions made, by action (allow, deny, isolate, ask).",
		}, []string{"action"}),
		EvalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "broker", Name: "eval_duration_seconds",
			Help: "Time spent evaluating a command against the active policy.", Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "broker", Name: "reloads_total",
			Help: "Policy reloads, by outcome (ok, invalid).",
		}, []string{"outcome"}),
		ApprovalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "broker", Name: "approvals_total",
			Help: "Interactive approval prompts resolved, by scope (once, session, always) and answer.",
		}, []string{"scope", "answer"}),
		ActivePolicyInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "broker", Name: "active_policy_info",
			Help: "Metadata of the currently active policy. Value is always 1.",
		}, []string{"name", "mode"}),
	}
	reg.MustRegister(m.DecisionsTotal, m.EvalDuration, m.ReloadsTotal, m.ApprovalsTotal, m.ActivePolicyInfo)
	return m
}
