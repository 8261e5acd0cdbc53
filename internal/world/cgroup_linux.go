//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// cgroupRoot is the standard cgroup v2 unified hierarchy mount point.
const cgroupRoot = "/sys/fs/cgroup"

// joinCgroup creates a per-session cgroup v2 leaf under cgroupRoot,
// applies memory.max when limits.Memory is set, and moves pid into it. CPU
// is left to applyRlimits' RLIMIT_CPU instead of a cgroup quota/period pair:
// Limits.CPU is a wall-clock cpu-time budget, not a cpu-count fraction, so
// there's no lossless quota/period translation. Missing or unwritable
// cgroup v2 degrades gracefully with a single warning (spec §4.5.1);
// the returned path is empty when that happens, telling Close there is
// nothing to remove.
func joinCgroup(logger *zap.Logger, id string, pid int, limits Limits) string {
	if _, err := os.Stat(filepath.Join(cgroupRoot, "cgroup.controllers")); err != nil {
		logWarnOnce(logger, "cgroup v2 not available, resource limits fall back to rlimits only", err)
		return ""
	}

	dir := filepath.Join(cgroupRoot, "substrate", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logWarnOnce(logger, "cgroup v2 unavailable for this session", err)
		return ""
	}

	if limits.Memory > 0 {
		maxPath := filepath.Join(dir, "memory.max")
		if err := os.WriteFile(maxPath, []byte(strconv.FormatInt(limits.Memory, 10)), 0o644); err != nil {
			logWarnOnce(logger, "cgroup v2 memory.max write failed", err)
		}
	}

	procsPath := filepath.Join(dir, "cgroup.procs")
	if err := os.WriteFile(procsPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		logWarnOnce(logger, "cgroup v2 cgroup.procs write failed", err)
		_ = os.Remove(dir)
		return ""
	}
	return dir
}

// leaveCgroup removes a session's cgroup leaf once its process has exited;
// cgroup v2 refuses rmdir while cgroup.procs is non-empty, so this only
// runs from Close after Wait has returned.
func leaveCgroup(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// cgroupWarnOnce limits the cgroup degrade warnings to one per process.
var cgroupWarnOnce sync.Once

func logWarnOnce(logger *zap.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	cgroupWarnOnce.Do(func() { logger.Warn(msg, zap.Error(err)) })
}
