/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorldMetrics instruments world-backend session lifecycle and exec calls.
type WorldMetrics struct {
	SessionsTotal    *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	ExecTotal        *prometheus.CounterVec
	ExecDuration     *prometheus.HistogramVec
	FsDiffBytes      *prometheus.HistogramVec
	BackendInfo      *prometheus.GaugeVec
}

// NewWorldMetrics creates and registers world-backend metrics on the package
// Registry.
func NewWorldMetrics() *WorldMetrics {
	return newWorldMetricsOn(Registry)
}

func newWorldMetricsOn(reg prometheus.Registerer) *WorldMetrics {
	m := &WorldMetrics{
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "world", Name: "sessions_total",
			Help: "World sessions created, by backend and outcome.",
		}, []string{"backend", "outcome"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "world", Name: "sessions_active",
			Help: "World sessions currently alive.",
		}),
		ExecTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "world", Name: "exec_total",
			Help: "Commands executed inside a world session, by backend and exit class.",
		}, []string{"backend", "exit_class"}),
		ExecDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "world", Name: "exec_duration_seconds",
			Help: "Time spent executing a command inside a world session.", Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		FsDiffBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "world", Name: "fs_diff_bytes",
			Help:    "Number of changed paths in each filesystem diff a world backend computes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}, []string{"backend"}),
		BackendInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "world", Name: "backend_info",
			Help: "Selected world backend and its capability probe result. Value is always 1.",
		}, []string{"backend", "available"}),
	}
	reg.MustRegister(m.SessionsTotal, m.SessionsActive, m.ExecTotal, m.ExecDuration, m.FsDiffBytes, m.BackendInfo)
	return m
}
