/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package trace implements the structured span log shared by the shell,
// shim, broker, and world agent (spec §3.2, §4.1). Every write is one JSON
// object per line; the schema is a single flat struct rather than a tagged
// union, since every component appends to the same sink and a reader must
// be able to scan the file without knowing each event's shape in advance.
package trace

import "time"

// EventType enumerates the span kinds defined in spec §3.2.
type EventType string

const (
	EventCommandStart    EventType = "command_start"
	EventCommandComplete EventType = "command_complete"
	EventBuiltinCommand  EventType = "builtin_command"
	EventPtySessionStart EventType = "pty_session_start"
	EventPtySessionEnd   EventType = "pty_session_end"
	EventSpawnFailed     EventType = "spawn_failed"
	EventPolicyViolation EventType = "policy_violation"
)

// Component names the subsystem that produced a span.
type Component string

const (
	ComponentShell      Component = "shell"
	ComponentShim       Component = "shim"
	ComponentBroker     Component = "broker"
	ComponentWorldAgent Component = "world-agent"
)

// Transport describes the channel a command_complete span's execution
// travelled over, for the cross-platform parity check spec §4.5.3 calls
// out.
type Transport struct {
	Mode     string `json:"mode"` // unix | named_pipe | tcp
	Endpoint string `json:"endpoint"`
}

// FsDiff summarizes filesystem changes attributable to an isolated command
// (spec §3.5).
type FsDiff struct {
	Writes    []string `json:"writes,omitempty"`
	Mods      []string `json:"mods,omitempty"`
	Deletes   []string `json:"deletes,omitempty"`
	Truncated bool     `json:"truncated"`
	TreeHash  string   `json:"tree_hash,omitempty"`
	Summary   string   `json:"summary,omitempty"`
}

// Span is one line of the trace log. Fields common to every event are
// required; the rest are populated per event_type per spec §3.2 and left
// as the zero value (and omitted from the JSON) otherwise.
type Span struct {
	TS          string    `json:"ts"`
	EventType   EventType `json:"event_type"`
	SessionID   string    `json:"session_id"`
	CmdID       string    `json:"cmd_id"`
	ParentCmdID string    `json:"parent_cmd_id,omitempty"`
	Component   Component `json:"component"`
	Depth       int       `json:"depth"`
	Cwd         string    `json:"cwd"`
	Host        string    `json:"host"`

	// Recorded at command_start only.
	IsattyStdin  *bool `json:"isatty_stdin,omitempty"`
	IsattyStdout *bool `json:"isatty_stdout,omitempty"`
	IsattyStderr *bool `json:"isatty_stderr,omitempty"`

	// command_start
	Command         string `json:"command,omitempty"`
	Argv            []string `json:"argv,omitempty"`
	ResolvedPath    string `json:"resolved_path,omitempty"`
	ShimFingerprint string `json:"shim_fingerprint,omitempty"`
	Bypass          bool   `json:"bypass,omitempty"`

	// command_complete
	ExitCode   *int       `json:"exit_code,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
	TermSignal *int       `json:"term_signal,omitempty"`
	ScopesUsed []string   `json:"scopes_used,omitempty"`
	FsDiff     *FsDiff    `json:"fs_diff,omitempty"`
	Transport  *Transport `json:"transport,omitempty"`

	// spawn_failed
	Error          string `json:"error,omitempty"`
	SpawnErrorKind string `json:"spawn_error_kind,omitempty"`
	SpawnErrno     int    `json:"spawn_errno,omitempty"`

	// policy_violation
	Pattern    string `json:"pattern,omitempty"`
	Reason     string `json:"reason,omitempty"`
	WouldDeny  bool   `json:"would_deny,omitempty"`

	// recursion/loop guard (§4.2)
	CallStack []string `json:"call_stack,omitempty"`

	// §7 budget_exceeded
	BudgetExceeded bool `json:"budget_exceeded,omitempty"`

	// §9 export builtin deferral
	DeferredToShell bool `json:"deferred_to_shell,omitempty"`
}

// Now stamps a span's ts field with the current time, millisecond
// precision, UTC, ISO-8601.
func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

// BoolPtr and IntPtr are exported so callers constructing a Span literal
// can populate the optional pointer fields without a local helper.
func BoolPtr(b bool) *bool { return boolPtr(b) }
func IntPtr(i int) *int    { return intPtr(i) }
