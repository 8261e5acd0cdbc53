/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// TraceMetrics instruments the trace span writer.
type TraceMetrics struct {
	SpansWritten   *prometheus.CounterVec
	WriteErrors    prometheus.Counter
	RotationsTotal prometheus.Counter
	RedactionsHit  *prometheus.CounterVec
}

// NewTraceMetrics creates and registers trace metrics on the package
// Registry.
func NewTraceMetrics() *TraceMetrics {
	return newTraceMetricsOn(Registry)
}

func newTraceMetricsOn(reg prometheus.Registerer) *TraceMetrics {
	m := &TraceMetrics{
		SpansWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "trace", Name: "spans_written_total",
			Help: "Trace spans appended to the JSONL sink, by span kind.",
		}, []string{"kind"}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "trace", Name: "write_errors_total",
			Help: "Errors writing a span to the trace log.",
		}),
		RotationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "trace", Name: "rotations_total",
			Help: "Trace log rotations performed after crossing the size cap.",
		}),
		RedactionsHit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "trace", Name: "redactions_total",
			Help: "Fields redacted before being written to a span, by pattern class.",
		}, []string{"pattern"}),
	}
	reg.MustRegister(m.SpansWritten, m.WriteErrors, m.RotationsTotal, m.RedactionsHit)
	return m
}
