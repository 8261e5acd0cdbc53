/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"os"
	"strings"
)

// shimEnvVars returns the SHIM_* contract entries (spec §6.2) every
// externally spawned command needs so cmd/shim can intercept its own
// children. cmdID becomes the child's SHIM_PARENT_CMD_ID at depth 0,
// since commands the shell spawns directly are the root of their own
// shim call stack. When ShimDir was never configured, only the session,
// parent-correlation, depth and (when set) trace-log vars are returned;
// PATH is left untouched.
func (s *Shell) shimEnvVars(cmdID string) map[string]string {
	vars := map[string]string{
		"SHIM_SESSION_ID":    s.sessionID.String(),
		"SHIM_PARENT_CMD_ID": cmdID,
		"SHIM_DEPTH":         "0",
	}
	if s.traceLogPath != "" {
		vars["SHIM_TRACE_LOG"] = s.traceLogPath
	}
	if s.shimDir == "" {
		return vars
	}
	original := os.Getenv("PATH")
	vars["SHIM_ORIGINAL_PATH"] = original
	if original == "" {
		vars["PATH"] = s.shimDir
	} else {
		vars["PATH"] = s.shimDir + string(os.PathListSeparator) + original
	}
	return vars
}

// environ returns the process environment for handing to a spawned
// host child, with the shim contract's PATH/SHIM_* entries overlaid on
// top so the child (and anything it execs) resolves through the PATH
// shim instead of straight to the real binaries.
func (s *Shell) environ(cmdID string) []string {
	overrides := s.shimEnvVars(cmdID)
	base := os.Environ()
	env := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if v, ok := overrides[key]; ok {
			env = append(env, key+"="+v)
			seen[key] = true
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		if !seen[k] {
			env = append(env, k+"="+v)
		}
	}
	return env
}

// mergeEnv layers override on top of base, returning a new map; either
// may be nil.
func mergeEnv(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
