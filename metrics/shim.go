/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ShimMetrics instruments the PATH shim's interception path.
type ShimMetrics struct {
	InterceptsTotal *prometheus.CounterVec
	CheckDuration   prometheus.Histogram
	ExecFailures    *prometheus.CounterVec
}

// NewShimMetrics creates and registers shim metrics on the package Registry.
func NewShimMetrics() *ShimMetrics {
	return newShimMetricsOn(Registry)
}

func newShimMetricsOn(reg prometheus.Registerer) *ShimMetrics {
	m := &ShimMetrics{
		InterceptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "shim", Name: "intercepts_total",
			Help: "Commands intercepted by the shim, by command name and decision.",
		}, []string{"command", "decision"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "shim", Name: "check_duration_seconds",
			Help:    "Time spent on the shim's fast policy check before exec.",
			Buckets: []float64{.0005, .001, .002, .005, .01, .025, .05, .1},
		}),
		ExecFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "shim", Name: "exec_failures_total",
			Help: "Failures resolving or exec'ing the real binary, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.InterceptsTotal, m.CheckDuration, m.ExecFailures)
	return m
}
