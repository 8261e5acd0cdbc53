//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// essentialRootfsPaths are bind-mounted read-only into every world's merged
// root so the isolated command still has a working userland (shared libs,
// interpreters, DNS config), mirrored from the bubblewrap sandbox's
// essentialSystemPaths list in the examples corpus. A path missing on the
// host is skipped rather than failing the whole session.
var essentialRootfsPaths = []string{"/usr", "/bin", "/lib", "/lib64", "/etc"}

// essentialDevNodes are bind-mounted from the host's /dev so an isolated
// command still has null/zero/random/tty without granting it devtmpfs or
// CAP_MKNOD, same set the bubblewrap sandbox keeps.
var essentialDevNodes = []string{"null", "zero", "urandom", "tty"}

// makeMountNamespacePrivate marks the entire mount tree rprivate so none of
// the mounts this package makes propagate back out to the host's mount
// namespace, per spec §4.5.1's "new mount namespace is first made private".
// Must run before any other mount call in the reexec child.
func makeMountNamespacePrivate() error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("world: make mount namespace private: %w", err)
	}
	return nil
}

// mountOverlay joins lowerDir (the project, read-only), upperDir (where
// writes land), and workDir (overlayfs scratch space) at mergedDir, giving
// the isolated command a full read-write view of the project whose writes
// never touch lowerDir. This is the mount computeFsDiff's upper-dir walk
// depends on; without it upperDir never receives anything a command writes.
func mountOverlay(lowerDir, upperDir, workDir, mergedDir string) error {
	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lowerDir, upperDir, workDir)
	if err := unix.Mount("overlay", mergedDir, "overlay", 0, opts); err != nil {
		return fmt.Errorf("world: mount overlay at %s: %w", mergedDir, err)
	}
	return nil
}

// bindRootfs bind-mounts the host's essential system directories read-only
// into mergedDir, then mounts a fresh /proc and minimal /dev on top.
func bindRootfs(mergedDir string) error {
	for _, p := range essentialRootfsPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		target := filepath.Join(mergedDir, p)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("world: create bind target %s: %w", target, err)
		}
		if err := unix.Mount(p, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("world: bind mount %s: %w", p, err)
		}
		if err := unix.Mount("", target, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("world: remount %s read-only: %w", target, err)
		}
	}

	devDir := filepath.Join(mergedDir, "dev")
	if err := os.MkdirAll(devDir, 0o755); err != nil {
		return fmt.Errorf("world: create /dev: %w", err)
	}
	for _, name := range essentialDevNodes {
		src := filepath.Join("/dev", name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(devDir, name)
		f, err := os.OpenFile(dst, os.O_CREATE, 0o666)
		if err != nil {
			return fmt.Errorf("world: create dev node target %s: %w", dst, err)
		}
		f.Close()
		if err := unix.Mount(src, dst, "", unix.MS_BIND, ""); err != nil {
			return fmt.Errorf("world: bind mount %s: %w", src, err)
		}
	}

	procDir := filepath.Join(mergedDir, "proc")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		return fmt.Errorf("world: create /proc: %w", err)
	}
	if err := unix.Mount("proc", procDir, "proc", 0, ""); err != nil {
		return fmt.Errorf("world: mount /proc: %w", err)
	}
	return nil
}

// pivotRoot replaces the process's root filesystem with mergedDir, the way
// a container runtime does: mergedDir is already a mount point (the overlay
// mount from mountOverlay), so pivot_root accepts it directly; this pivots
// into it, then detaches and discards the old root so the isolated command
// can never walk back out to it.
func pivotRoot(mergedDir string) error {
	oldRoot := filepath.Join(mergedDir, ".oldroot")
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return fmt.Errorf("world: create pivot_root putold dir: %w", err)
	}
	if err := unix.PivotRoot(mergedDir, oldRoot); err != nil {
		return fmt.Errorf("world: pivot_root: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("world: chdir to new root: %w", err)
	}
	if err := unix.Unmount("/.oldroot", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("world: detach old root: %w", err)
	}
	_ = os.RemoveAll("/.oldroot")
	return nil
}

