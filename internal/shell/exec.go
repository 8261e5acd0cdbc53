/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/substrate-run/substrate/internal/ids"
	"github.com/substrate-run/substrate/internal/policy"
	"github.com/substrate-run/substrate/internal/trace"
)

// Result is what Eval reports back to a dispatch loop.
type Result struct {
	Exit       int
	Err        error
	Shutdown   bool // set when the input was "exit"/"quit"
	TermSignal *int
	ScopesUsed []string
	FsDiff     *trace.FsDiff
}

// Eval implements spec §4.3's per-command evaluation pipeline: trim,
// resolve, redact, emit command_start, dispatch to a builtin or the
// broker/world/host, emit command_complete.
func (s *Shell) Eval(ctx context.Context, input string) Result {
	cmd := strings.TrimSpace(input)
	if cmd == "" {
		return Result{}
	}

	cwd, _ := os.Getwd()
	cmdID := ids.New()
	resolvedPath := resolveBestEffort(cmd)
	redacted := trace.Redact(cmd)
	redactedArgv := trace.RedactArgv(strings.Fields(cmd))

	s.emit(trace.Span{
		TS:           trace.Now(),
		EventType:    trace.EventCommandStart,
		SessionID:    s.sessionID.String(),
		CmdID:        cmdID.String(),
		Component:    trace.ComponentShell,
		Cwd:          cwd,
		Host:         s.host,
		Command:      redacted,
		Argv:         redactedArgv,
		ResolvedPath: resolvedPath,
	})

	start := time.Now()
	result := s.dispatch(ctx, cmd, cwd, cmdID)
	duration := time.Since(start)

	s.lastExit.Store(int32(result.Exit))
	exitCode := result.Exit
	s.emit(trace.Span{
		TS:         trace.Now(),
		EventType:  trace.EventCommandComplete,
		SessionID:  s.sessionID.String(),
		CmdID:      cmdID.String(),
		Component:  trace.ComponentShell,
		Cwd:        cwd,
		Host:       s.host,
		ExitCode:   &exitCode,
		DurationMs: duration.Milliseconds(),
		TermSignal: result.TermSignal,
		ScopesUsed: result.ScopesUsed,
		FsDiff:     result.FsDiff,
	})
	return result
}

// resolveBestEffort computes a resolved_path span field from the
// untrimmed command's first word, without requiring it to succeed; a
// miss here is diagnostic, not an error.
func resolveBestEffort(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return ""
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return ""
	}
	return path
}

func (s *Shell) dispatch(ctx context.Context, cmd, cwd string, cmdID ids.ID) Result {
	if cmd == "exit" || cmd == "quit" || strings.HasPrefix(cmd, "exit ") || strings.HasPrefix(cmd, "quit ") {
		res, _ := s.tryBuiltin(cmd)
		return Result{Exit: res.exit, Shutdown: true}
	}

	if !needsShell(cmd) {
		if res, ok := s.tryBuiltin(cmd); ok && !res.deferred {
			s.emit(trace.Span{
				TS:        trace.Now(),
				EventType: trace.EventBuiltinCommand,
				SessionID: s.sessionID.String(),
				CmdID:     cmdID.String(),
				Component: trace.ComponentShell,
				Cwd:       cwd,
				Host:      s.host,
				Command:   cmd,
			})
			return Result{Exit: res.exit}
		}
	}

	decision := policy.Decision{Action: policy.ActionAllow}
	if s.broker != nil {
		decision = s.broker.Evaluate(cmd, cwd, s.worldIDOrEmpty())
	}
	if decision.WouldDeny {
		s.emit(trace.Span{
			TS:        trace.Now(),
			EventType: trace.EventPolicyViolation,
			SessionID: s.sessionID.String(),
			CmdID:     cmdID.String(),
			Component: trace.ComponentShell,
			Cwd:       cwd,
			Host:      s.host,
			Pattern:   decision.MatchedPattern,
			Reason:    decision.Reason,
			WouldDeny: true,
		})
	}
	if decision.Action == policy.ActionDeny {
		fmt.Fprintf(os.Stderr, "substrate: denied: %s (%s)\n", cmd, decision.Reason)
		exit := 1
		if !s.interactive() {
			exit = 126
		}
		return Result{Exit: exit}
	}

	isolated := decision.HasRestriction(policy.RestrictionIsolatedWorld)
	return s.runExternal(ctx, cmd, cwd, isolated, cmdID.String())
}

func (s *Shell) worldIDOrEmpty() string {
	if s.worldHandle == nil {
		return ""
	}
	return s.worldHandle.ID
}

// interactive reports whether stderr is a terminal, used to choose the
// policy-denial exit code per spec §4.3.
func (s *Shell) interactive() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// runExternal hands cmd to the downstream shell, either directly on the
// host or through the world backend, per spec §4.3 step 6.
func (s *Shell) runExternal(ctx context.Context, cmd, cwd string, isolated bool, cmdID string) Result {
	if s.backend != nil {
		return s.runInWorld(ctx, cmd, cwd, isolated, cmdID)
	}
	exit, termSig, err := s.runOnHost(ctx, cmd, cwd, cmdID)
	return Result{Exit: exit, TermSignal: termSig, Err: err}
}

func (s *Shell) runOnHost(ctx context.Context, cmd, cwd, cmdID string) (exit int, termSignal *int, err error) {
	shellPath := s.shellOverride
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "/bin/sh"
	}
	resolved, lookErr := exec.LookPath(shellPath)
	if lookErr != nil {
		resolved = shellPath
	}

	c := exec.CommandContext(ctx, resolved, "-c", cmd)
	c.Dir = cwd
	c.Env = s.environ(cmdID)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if startErr := startWithProcessGroup(c); startErr != nil {
		return -1, nil, fmt.Errorf("shell: spawn failed: %w", startErr)
	}
	s.childPgid.Store(int32(c.Process.Pid))
	defer s.childPgid.Store(0)

	waitErr := c.Wait()
	return exitCodeOf(waitErr)
}

func exitCodeOf(err error) (exit int, termSignal *int, wrapped error) {
	if err == nil {
		return 0, nil, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitErr(err, &exitErr); ok {
		return exitErr.ExitCode(), signalFromExitError(exitErr), nil
	}
	return -1, nil, err
}

func asExitErr(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

