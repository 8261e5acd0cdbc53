/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package substraterr defines the named error taxonomy shared by every
// component (spec §7). Every exported function returns (T, error); panics
// never cross a package boundary except at a small number of documented,
// truly unrecoverable startup failures.
package substraterr

import "fmt"

// Kind names one of the error classes from spec §7. Kinds are compared by
// value, not by error message, so callers can branch on them reliably.
type Kind string

const (
	// KindConfiguration covers malformed policy, an unreadable trace
	// destination, or missing required environment.
	KindConfiguration Kind = "configuration_error"
	// KindResolution covers a command not found on the clean PATH, or an
	// explicit path that is not executable.
	KindResolution Kind = "resolution_failed"
	// KindSpawn covers the OS rejecting an exec.
	KindSpawn Kind = "spawn_failed"
	// KindPolicyDenial covers a broker Deny decision at the enforcement
	// point.
	KindPolicyDenial Kind = "policy_denial"
	// KindWorldUnavailable covers a backend that cannot ensure a session.
	KindWorldUnavailable Kind = "world_unavailable"
	// KindBudgetExceeded covers an agent-API request exceeding its
	// allotted execs/runtime/egress budget.
	KindBudgetExceeded Kind = "budget_exceeded"
)

// Error is the common error type returned across package boundaries. It
// carries a Kind for programmatic branching plus a human-readable message
// and, for resolution/spawn errors, a correlated command ID for the
// trace-entry pointer spec §7 requires in user-visible output.
type Error struct {
	Kind  Kind
	CmdID string // optional: the trace cmd_id a user can look up
	Msg   string
	Err   error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error with the given kind, message, and wrapped cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithCmdID returns a copy of e with CmdID set, for attaching the
// trace-entry pointer spec §7 requires in user-visible denial/failure
// messages.
func (e *Error) WithCmdID(cmdID string) *Error {
	cp := *e
	cp.CmdID = cmdID
	return &cp
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			se = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return se != nil && se.Kind == kind
}
