//go:build windows

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// defaultAgentPipe is the named pipe the world agent listens on inside
// the default WSL distro, bridged to the Windows side by WSL's own
// \\.\pipe\ forwarding (the same mechanism Docker Desktop's WSL
// integration relies on).
const defaultAgentPipe = `\\.\pipe\substrate-world-agent`

// newWindowsWSLAgent builds the Windows backend: WSL2 runs the world
// agent as a Linux process reachable over a Windows named pipe, since
// WSL2's networking NAT makes a plain TCP loopback target unreliable
// across distro restarts while the pipe survives them.
func newWindowsWSLAgent(opts Options) (Backend, error) {
	pipe := opts.AgentAddr
	if pipe == "" {
		pipe = defaultAgentPipe
	}
	dial := func(ctx context.Context) (net.Conn, error) {
		return winio.DialPipeContext(ctx, pipe)
	}
	return newRemoteBackend(NameWindowsWSLAgent, dial, opts), nil
}
