/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/substrate-run/substrate/internal/ids"
	"github.com/substrate-run/substrate/internal/trace"
	"github.com/substrate-run/substrate/internal/world"
)

// ensureSessionWorld lazily provisions the session's reusable world on
// first use; isolated commands instead get their own ephemeral world via
// ensureEphemeralWorld.
func (s *Shell) ensureSessionWorld(ctx context.Context, cwd string) (*world.Handle, error) {
	if s.worldHandle != nil {
		return s.worldHandle, nil
	}
	handle, err := s.backend.EnsureSession(ctx, world.Spec{
		ReuseSession: true,
		ProjectDir:   cwd,
	})
	if err != nil {
		return nil, err
	}
	s.worldHandle = handle
	return handle, nil
}

// runInWorld executes cmd through the world backend: the session world
// when the command is merely running with worlds enabled, or a
// fresh ephemeral world when the broker restricted it to isolation.
func (s *Shell) runInWorld(ctx context.Context, cmd, cwd string, isolated bool, cmdID string) Result {
	var (
		handle *world.Handle
		err    error
	)
	if isolated {
		handle, err = s.backend.EnsureSession(ctx, world.Spec{
			AlwaysIsolate: true,
			ProjectDir:    cwd,
		})
	} else {
		handle, err = s.ensureSessionWorld(ctx, cwd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world unavailable: %v\n", err)
		return Result{Exit: -1, Err: err}
	}
	if isolated {
		defer func() {
			if closeErr := s.backend.Close(ctx, handle); closeErr != nil {
				s.logger.Warn("failed to close ephemeral world")
			}
		}()
	}

	req := world.ExecRequest{
		Cmd: cmd,
		Cwd: "",
		Env: mergeEnv(exportedEnv(s.exported), s.shimEnvVars(cmdID)),
		Pty: s.interactive() && s.stdinIsTTY(),
	}

	if req.Pty {
		return s.runPtyInWorld(ctx, handle, req)
	}

	result, err := s.backend.Exec(ctx, handle, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world exec failed: %v\n", err)
		return Result{Exit: -1, Err: err}
	}
	stdout, stderr := s.egressWriters(cwd)
	stdout.Write(result.Stdout)
	stderr.Write(result.Stderr)
	return Result{Exit: result.Exit, ScopesUsed: result.ScopesUsed, FsDiff: result.FsDiff}
}

// egressWriters wraps os.Stdout/os.Stderr with the active policy's
// net.egress_budget token bucket, so a world session's output is
// throttled and eventually cut off the same way its command_complete
// fs_diff/scopes are already policy-derived. A nil broker (no policy
// configured) or an unset budget leaves them unwrapped.
func (s *Shell) egressWriters(cwd string) (stdout, stderr io.Writer) {
	if s.broker == nil {
		return os.Stdout, os.Stderr
	}
	limiter := s.broker.EgressLimiter(cwd)
	return limiter.Wrap(os.Stdout), limiter.Wrap(os.Stderr)
}

func (s *Shell) runPtyInWorld(ctx context.Context, handle *world.Handle, req world.ExecRequest) Result {
	ptyExecer, ok := s.backend.(world.PTYExecer)
	if !ok {
		result, err := s.backend.Exec(ctx, handle, world.ExecRequest{Cmd: req.Cmd, Cwd: req.Cwd, Env: req.Env})
		if err != nil {
			return Result{Exit: -1, Err: err}
		}
		stdout, stderr := s.egressWriters(req.Cwd)
		stdout.Write(result.Stdout)
		stderr.Write(result.Stderr)
		return Result{Exit: result.Exit, ScopesUsed: result.ScopesUsed, FsDiff: result.FsDiff}
	}

	spanID := ids.New().String()
	s.emit(trace.Span{
		TS:        trace.Now(),
		EventType: trace.EventPtySessionStart,
		SessionID: s.sessionID.String(),
		CmdID:     spanID,
		Component: trace.ComponentShell,
		Host:      s.host,
	})

	ptyStdout, _ := s.egressWriters(req.Cwd)
	exit, err := ptyExecer.ExecPTY(ctx, handle, req, os.Stdin, func(p []byte) {
		ptyStdout.Write(p)
	})

	s.emit(trace.Span{
		TS:        trace.Now(),
		EventType: trace.EventPtySessionEnd,
		SessionID: s.sessionID.String(),
		CmdID:     spanID,
		Component: trace.ComponentShell,
		Host:      s.host,
	})

	if err != nil {
		return Result{Exit: -1, Err: err}
	}
	return Result{Exit: exit}
}

func (s *Shell) stdinIsTTY() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func exportedEnv(exported map[string]string) map[string]string {
	if len(exported) == 0 {
		return nil
	}
	out := make(map[string]string, len(exported))
	for k, v := range exported {
		out[k] = v
	}
	return out
}
