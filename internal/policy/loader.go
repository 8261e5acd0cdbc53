/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocalOverrideFilename is the per-project policy override file merged
// into the active profile when present in (an ancestor of) the current
// working directory, grounded on the teacher's coder-agent local policy
// merge (SPEC_FULL §12).
const LocalOverrideFilename = "substrate_policy.yaml"

// ProfileFilename names the per-directory file whose contents select the
// active profile (spec §4.4).
const ProfileFilename = ".substrate-profile"

// LoadFile reads and validates a single policy file (YAML or JSON; JSON
// is valid YAML so one parser covers both, per SPEC_FULL §10.3).
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy: invalid %s: %w", path, err)
	}
	p.sourcePath = path
	return &p, nil
}

// LoadDir loads every *.yaml/*.yml/*.json file in dir, keyed by policy
// id. A single malformed file is reported by name but does not prevent
// the rest of the directory from loading.
func LoadDir(dir string) (map[string]*Policy, []error) {
	policies := make(map[string]*Policy)
	var errs []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return policies, nil
		}
		return nil, []error{fmt.Errorf("policy: read dir %s: %w", dir, err)}
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		policies[p.ID] = p
	}
	return policies, errs
}

// ActiveProfileName walks from cwd up through ancestors looking for a
// .substrate-profile file; its trimmed contents name the active profile.
// Returns "default" if none is found (spec §4.4).
func ActiveProfileName(cwd string) string {
	dir := cwd
	for {
		candidate := filepath.Join(dir, ProfileFilename)
		if data, err := os.ReadFile(candidate); err == nil {
			name := strings.TrimSpace(string(data))
			if name != "" {
				return name
			}
			return "default"
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "default"
}

// FindLocalOverride walks from cwd up through ancestors looking for
// substrate_policy.yaml, returning its path or "" if none exists.
func FindLocalOverride(cwd string) string {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalOverrideFilename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// MergeLocalOverride layers a local override policy onto base: override
// pattern lists are appended (not replaced) so a project can only narrow
// or add exceptions, never silently drop an inherited deny rule; Mode and
// World settings, when set in the override, replace the base's.
func MergeLocalOverride(base *Policy, override *Policy) *Policy {
	if override == nil {
		return base
	}
	merged := *base

	merged.Fs.Read = append(append([]string{}, base.Fs.Read...), override.Fs.Read...)
	merged.Fs.Write = append(append([]string{}, base.Fs.Write...), override.Fs.Write...)
	merged.Net.Allowed = append(append([]string{}, base.Net.Allowed...), override.Net.Allowed...)

	merged.Commands.Allowed = append(append([]string{}, base.Commands.Allowed...), override.Commands.Allowed...)
	merged.Commands.Denied = append(append([]string{}, base.Commands.Denied...), override.Commands.Denied...)
	merged.Commands.Isolated = append(append([]string{}, base.Commands.Isolated...), override.Commands.Isolated...)

	merged.Approval.AutoApprove = append(append([]string{}, base.Approval.AutoApprove...), override.Approval.AutoApprove...)
	if override.Approval.Interactive {
		merged.Approval.Interactive = true
	}

	if override.Mode != "" {
		merged.Mode = override.Mode
	}
	if override.World != (WorldRules{}) {
		merged.World = override.World
	}
	return &merged
}
