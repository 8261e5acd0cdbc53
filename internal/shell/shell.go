/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package shell implements the Substrate shell (spec §4.3): the
// top-level session that dispatches interactive, wrap, script, and pipe
// execution modes, owns the builtin set, and routes every external
// command through the policy broker and, when the command is isolated
// or the session has a world enabled, the world backend.
package shell

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/substrate-run/substrate/internal/ids"
	"github.com/substrate-run/substrate/internal/policy"
	"github.com/substrate-run/substrate/internal/trace"
	"github.com/substrate-run/substrate/internal/world"
)

// Options configures a Shell at construction time.
type Options struct {
	Logger  *zap.Logger
	Writer  *trace.Writer
	Broker  *policy.Broker
	Backend world.Backend // nil disables world isolation; commands run on the host
	World   world.Name

	// Shell overrides the downstream shell used to run external commands
	// (substrate --shell PATH); empty means fall back to $SHELL, then
	// /bin/sh.
	Shell string

	// ShimDir is the directory holding the PATH shim binary and its
	// per-command links (config.DefaultShimDir); when non-empty it is
	// prepended to every spawned child's PATH and SHIM_ORIGINAL_PATH
	// carries the PATH it replaced, wiring the shell into the PATH shim
	// per spec §4.2/§6.2. Empty disables shim interception entirely.
	ShimDir string

	// TraceLogPath is handed to spawned children as SHIM_TRACE_LOG so a
	// shimmed child's own command_start/command_complete spans land in
	// the same trace log as the shell's.
	TraceLogPath string

	// CI enables errexit-like behavior in Script/Pipe modes: the first
	// non-zero exit terminates the run unless NoExitOnError is set.
	CI            bool
	NoExitOnError bool
}

// Shell owns one session: a session ID, a trace writer, a policy
// broker, and (optionally) a world backend.
type Shell struct {
	logger  *zap.Logger
	writer  *trace.Writer
	broker  *policy.Broker
	backend world.Backend
	worldName world.Name
	shellOverride string
	shimDir       string
	traceLogPath  string

	ci            bool
	noExitOnError bool

	sessionID  ids.ID
	host       string
	lastExit   atomic.Int32
	worldHandle *world.Handle

	// exported tracks builtin-exported variables applied to every
	// subsequently spawned child's environment, in addition to the
	// process's own os.Environ().
	exported map[string]string

	// interrupted is set by the signal handler when a child process
	// group should receive a forwarded signal; the main loop never
	// blocks on a lock to read it.
	interrupted atomic.Bool

	// childPgid, when non-zero, names the process group of the
	// currently running foreground child, consulted by the signal
	// handler to know where to forward.
	childPgid atomic.Int32
}

// New constructs a Shell for one session.
func New(opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	host, _ := os.Hostname()
	return &Shell{
		logger:        logger,
		writer:        opts.Writer,
		broker:        opts.Broker,
		backend:       opts.Backend,
		worldName:     opts.World,
		shellOverride: opts.Shell,
		shimDir:       opts.ShimDir,
		traceLogPath:  opts.TraceLogPath,
		ci:            opts.CI,
		noExitOnError: opts.NoExitOnError,
		sessionID:     ids.New(),
		host:          host,
		exported:      make(map[string]string),
	}
}

// SessionID returns the session's identifier, for log correlation and
// for SHIM_SESSION_ID when the shell launches shimmed children.
func (s *Shell) SessionID() string {
	return s.sessionID.String()
}

// LastExitCode returns the most recently completed command's exit code.
func (s *Shell) LastExitCode() int {
	return int(s.lastExit.Load())
}

func (s *Shell) emit(span trace.Span) {
	if s.writer == nil {
		return
	}
	if err := s.writer.Emit(span); err != nil {
		fmt.Fprintf(os.Stderr, "substrate: trace write failed: %v\n", err)
	}
}

// Close releases the shell's world session, if one was provisioned.
func (s *Shell) Close() {
	if s.backend == nil || s.worldHandle == nil {
		return
	}
	if err := s.backend.Close(context.Background(), s.worldHandle); err != nil {
		s.logger.Warn("failed to close world session", zap.Error(err))
	}
}
