/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"context"
	"fmt"
	"runtime"

	"github.com/substrate-run/substrate/internal/trace"
)

// Backend is the trait surface spec §4.5 requires of every world
// implementation. A session owns at most one reusable world; isolated
// commands may additionally request an ephemeral, one-command-lifetime
// world by passing a Spec with AlwaysIsolate set.
type Backend interface {
	// EnsureSession is idempotent: if a compatible session world already
	// exists it is returned unchanged; otherwise one is constructed.
	EnsureSession(ctx context.Context, spec Spec) (*Handle, error)
	// Exec runs req inside handle's world. When req.Pty is set, the
	// returned ExecResult's Stdout/Stderr are unused; callers should use
	// ExecPTY instead to get a byte-streaming transport.
	Exec(ctx context.Context, handle *Handle, req ExecRequest) (*ExecResult, error)
	// FsDiff returns the filesystem diff recorded for a completed
	// command. Backends that return FsDiff inline from Exec may treat
	// this as an idempotent re-fetch of the same data.
	FsDiff(ctx context.Context, handle *Handle, spanID string) (*trace.FsDiff, error)
	// ApplyPolicy updates network allowlists, resource limits, and
	// preload injection inside the running world.
	ApplyPolicy(ctx context.Context, handle *Handle, spec Spec) error
	// Close releases any resources held for handle (ephemeral worlds)
	// or for the backend itself (session worlds, on shell exit).
	Close(ctx context.Context, handle *Handle) error
}

// Name identifies which Backend implementation is in use, for trace
// spans (`transport.mode`) and metrics labels.
type Name string

const (
	NameLinuxNative    Name = "linux_native"
	NameLinuxVMAgent   Name = "linux_vm_via_agent"
	NameWindowsWSLAgent Name = "windows_wsl_via_agent"
	NameUnavailable    Name = "unavailable"
)

// Select returns the Backend appropriate for the current GOOS, per spec
// §4.5: native namespaces on Linux, a Linux VM reached over an agent
// transport on macOS, and WSL reached over a named-pipe agent transport
// on Windows.
func Select(opts Options) (Backend, Name, error) {
	switch runtime.GOOS {
	case "linux":
		b, err := newLinuxNative(opts)
		if err != nil {
			return nil, NameUnavailable, err
		}
		return b, NameLinuxNative, nil
	case "darwin":
		b, err := newLinuxVMAgent(opts)
		if err != nil {
			return nil, NameUnavailable, err
		}
		return b, NameLinuxVMAgent, nil
	case "windows":
		b, err := newWindowsWSLAgent(opts)
		if err != nil {
			return nil, NameUnavailable, err
		}
		return b, NameWindowsWSLAgent, nil
	default:
		return nil, NameUnavailable, fmt.Errorf("world: no backend for GOOS %q", runtime.GOOS)
	}
}
