/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */

// Package policy implements the Policy Broker (spec §3.3, §3.4, §4.4):
// loading and validating declarative policy files, evaluating commands
// against them, and caching interactive approvals.
package policy

import "fmt"

// Mode selects whether a Deny decision is enforced or only logged.
type Mode string

const (
	ModeObserve Mode = "observe"
	ModeEnforce Mode = "enforce"
)

// EgressBudget caps outbound network usage for a world session.
type EgressBudget struct {
	BytesPerSec int64 `yaml:"bytes_per_sec,omitempty" json:"bytes_per_sec,omitempty"`
	TotalBytes  int64 `yaml:"total_bytes,omitempty" json:"total_bytes,omitempty"`
}

// NetRules describes allowed outbound network destinations.
type NetRules struct {
	Allowed      []string      `yaml:"allowed,omitempty" json:"allowed,omitempty"`
	EgressBudget *EgressBudget `yaml:"egress_budget,omitempty" json:"egress_budget,omitempty"`
}

// FsRules is the ordered set of glob-like path patterns governing
// filesystem access, per spec §3.3.
type FsRules struct {
	Read  []string `yaml:"read,omitempty" json:"read,omitempty"`
	Write []string `yaml:"write,omitempty" json:"write,omitempty"`
}

// CommandRules is the three-bucket command classification spec §3.3/§4.4
// evaluates in a fixed order: denied, then isolated, then allowed.
type CommandRules struct {
	Allowed  []string `yaml:"allowed,omitempty" json:"allowed,omitempty"`
	Denied   []string `yaml:"denied,omitempty" json:"denied,omitempty"`
	Isolated []string `yaml:"isolated,omitempty" json:"isolated,omitempty"`
}

// WorldLimits caps CPU and memory for a world session.
type WorldLimits struct {
	CPU    string `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory string `yaml:"memory,omitempty" json:"memory,omitempty"`
}

// WorldRules carries execution-envelope hints for the world backend.
type WorldRules struct {
	ReuseSession   bool        `yaml:"reuse_session" json:"reuse_session"`
	IsolateNetwork bool        `yaml:"isolate_network" json:"isolate_network"`
	Limits         WorldLimits `yaml:"limits,omitempty" json:"limits,omitempty"`
	EnablePreload  bool        `yaml:"enable_preload" json:"enable_preload"`
}

// ApprovalRules governs the interactive-approval path (spec §4.4).
type ApprovalRules struct {
	Interactive bool     `yaml:"interactive" json:"interactive"`
	AutoApprove []string `yaml:"auto_approve,omitempty" json:"auto_approve,omitempty"`
}

// PrivacyRules governs trace and fs-diff scrubbing.
type PrivacyRules struct {
	IgnorePaths    []string `yaml:"ignore_paths,omitempty" json:"ignore_paths,omitempty"`
	HashCodeOnly   bool     `yaml:"hash_code_only" json:"hash_code_only"`
	IndexUserDocs  bool     `yaml:"index_user_docs" json:"index_user_docs"`
}

// Policy is the declarative, YAML/JSON-loadable rule set spec §3.3
// defines.
type Policy struct {
	ID       string       `yaml:"id" json:"id"`
	Name     string       `yaml:"name" json:"name"`
	Mode     Mode         `yaml:"mode" json:"mode"`
	Fs       FsRules      `yaml:"fs,omitempty" json:"fs,omitempty"`
	Net      NetRules     `yaml:"net,omitempty" json:"net,omitempty"`
	Commands CommandRules `yaml:"commands,omitempty" json:"commands,omitempty"`
	World    WorldRules   `yaml:"world,omitempty" json:"world,omitempty"`
	Approval ApprovalRules `yaml:"approval,omitempty" json:"approval,omitempty"`
	Privacy  PrivacyRules `yaml:"privacy,omitempty" json:"privacy,omitempty"`

	// sourcePath is the file this policy was loaded from, kept for
	// reload diagnostics; zero value for a programmatically built policy.
	sourcePath string `yaml:"-" json:"-"`
}

// Validate enforces the schema-level invariants spec §3.3 requires before
// a policy may replace the running one: a stable id and a name are
// mandatory; an empty mode is set to observe, and any other mode must be
// observe or enforce; everything else is optional.
func (p *Policy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("policy: missing required field %q", "id")
	}
	if p.Name == "" {
		return fmt.Errorf("policy: missing required field %q", "name")
	}
	switch p.Mode {
	case ModeObserve, ModeEnforce:
	case "":
		p.Mode = ModeObserve
	default:
		return fmt.Errorf("policy: invalid mode %q (must be %q or %q)", p.Mode, ModeObserve, ModeEnforce)
	}
	for _, pat := range p.Commands.Allowed {
		if _, err := compilePattern(pat); err != nil {
			return fmt.Errorf("policy: commands.allowed: %w", err)
		}
	}
	for _, pat := range p.Commands.Denied {
		if _, err := compilePattern(pat); err != nil {
			return fmt.Errorf("policy: commands.denied: %w", err)
		}
	}
	for _, pat := range p.Commands.Isolated {
		if _, err := compilePattern(pat); err != nil {
			return fmt.Errorf("policy: commands.isolated: %w", err)
		}
	}
	return nil
}
