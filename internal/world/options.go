/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"go.uber.org/zap"

	"github.com/substrate-run/substrate/metrics"
)

// Options configures a Backend at construction time, common across all
// three implementations.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.WorldMetrics
	// AgentAddr, when non-empty, overrides the default local transport
	// target for the VM/WSL agent backends ("vsock:cid:port" or
	// "tcp:host:port" on macOS, a named-pipe path on Windows), primarily
	// for tests.
	AgentAddr string
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}
