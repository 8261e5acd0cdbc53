/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package world implements the World Backend trait (spec §3.5, §4.5): a
// common interface for provisioning and executing commands inside an
// isolated execution environment, with three platform implementations
// sharing a Linux isolation core.
package world

import (
	"time"

	"github.com/substrate-run/substrate/internal/trace"
)

// Limits caps CPU and memory for a world session (spec §3.5).
type Limits struct {
	CPU    time.Duration `json:"cpu,omitempty"`
	Memory int64         `json:"memory,omitempty"` // bytes
}

// Spec is the provisioning request for a world session (spec §3.5
// "WorldSpec").
type Spec struct {
	ReuseSession   bool     `json:"reuse_session"`
	IsolateNetwork bool     `json:"isolate_network"`
	AlwaysIsolate  bool     `json:"always_isolate"`
	Limits         Limits   `json:"limits,omitempty"`
	EnablePreload  bool     `json:"enable_preload"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	ProjectDir     string   `json:"project_dir"`
}

// Handle opaquely identifies a live world instance (spec §3.5
// "WorldHandle").
type Handle struct {
	ID string `json:"id"`
}

// ExecRequest describes one command execution inside a world (spec §3.5).
type ExecRequest struct {
	Cmd string            `json:"cmd"`
	Cwd string            `json:"cwd"` // world-relative
	Env map[string]string `json:"env,omitempty"`
	Pty bool              `json:"pty"`
}

// ExecResult is the outcome of an ExecRequest (spec §3.5).
type ExecResult struct {
	Exit       int           `json:"exit"`
	Stdout     []byte        `json:"stdout,omitempty"`
	Stderr     []byte        `json:"stderr,omitempty"`
	ScopesUsed []string      `json:"scopes_used,omitempty"`
	FsDiff     *trace.FsDiff `json:"fs_diff,omitempty"`
}

// FsDiffCap bounds the number of individually enumerated paths in an
// FsDiff before it is truncated in favor of a tree hash (spec §3.5).
const FsDiffCap = 1000
