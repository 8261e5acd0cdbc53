/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics holds process-level metadata metrics.
type ServerMetrics struct {
	Info   *prometheus.GaugeVec
	uptime prometheus.GaugeFunc
}

// NewServerMetrics creates and registers process metrics. startTime is the
// process boot time used to compute uptime.
func NewServerMetrics(version, platform, worldBackend string, startTime time.Time) *ServerMetrics {
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "process",
		Name:      "info",
		Help:      "Process metadata (version, platform, world backend). Value is always 1.",
	}, []string{"version", "platform", "world_backend"})

	info.WithLabelValues(version, platform, worldBackend).Set(1)

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "process",
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds.",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	Registry.MustRegister(info, uptime)

	return &ServerMetrics{
		Info:   info,
		uptime: uptime,
	}
}
