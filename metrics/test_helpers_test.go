package metrics

import "github.com/prometheus/client_golang/prometheus"

// newTestRegistry creates a fresh Prometheus registry for test isolation.
func newTestRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
