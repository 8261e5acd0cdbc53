/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"context"
	"io"
)

// PTYExecer is an optional Backend capability for terminal-attached
// execution: onOutput receives combined pty output as it arrives, and
// stdin is copied to the pty's master side until it returns EOF or the
// command exits. Only backends that can allocate a real pty (the Linux
// isolation core) implement it; the agent server type-asserts for it
// when a client requests req.Pty.
type PTYExecer interface {
	ExecPTY(ctx context.Context, handle *Handle, req ExecRequest, stdin io.Reader, onOutput func([]byte)) (int, error)
}
