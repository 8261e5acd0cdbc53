//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	seccompRetAllow = 0x7fff0000
	seccompRetErrno = 0x00050000

	// reexecEnvVar signals that this process was re-exec'd by
	// linuxNative.Exec purely to install the seccomp filter before
	// replacing itself with the real command; exec.Cmd offers no
	// pre-exec hook, so a one-shot self-reexec is the only way to apply
	// a BPF filter to the child and not to the caller.
	reexecEnvVar = "SUBSTRATE_WORLD_SECCOMP_CHILD"
)

// buildSeccompFilter constructs a classic BPF program that denies
// deniedSyscalls with EPERM and allows everything else.
func buildSeccompFilter() []unix.SockFilter {
	n := len(deniedSyscalls)
	if n == 0 {
		return nil
	}
	prog := make([]unix.SockFilter, 0, n+3)
	prog = append(prog, unix.SockFilter{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: 0})
	for i, nr := range deniedSyscalls {
		prog = append(prog, unix.SockFilter{
			Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K,
			Jt:   uint8(n - i),
			Jf:   0,
			K:    nr,
		})
	}
	prog = append(prog, unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetAllow})
	prog = append(prog, unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetErrno | uint32(unix.EPERM)})
	return prog
}

// installSeccompFilter loads buildSeccompFilter into the current process
// via prctl(PR_SET_SECCOMP). Must be called after PR_SET_NO_NEW_PRIVS,
// which the kernel requires of any non-root process installing a filter.
func installSeccompFilter() error {
	prog := buildSeccompFilter()
	if len(prog) == 0 {
		return nil
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("world: prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	fprog := unix.SockFprog{Len: uint16(len(prog)), Filter: &prog[0]}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog)), 0, 0); err != nil {
		return fmt.Errorf("world: prctl(PR_SET_SECCOMP): %w", err)
	}
	return nil
}

// RunSeccompReexecChild is the entrypoint cmd/substrate calls at the very
// top of main(), before flag parsing: when SUBSTRATE_WORLD_SECCOMP_CHILD
// is set, it mounts the overlay and rootfs, pivot_roots into it, drops
// capabilities, installs the syscall filter, then execve's argv[1:] in
// place, preserving the target's own argv[0]. It never returns when the
// env var is set (either it exec's successfully or it os.Exit(1)s); it is
// a no-op otherwise.
func RunSeccompReexecChild() {
	if os.Getenv(reexecEnvVar) != "1" {
		return
	}
	if err := mountWorldRootfs(); err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world rootfs setup: %v\n", err)
		os.Exit(1)
	}
	if err := dropCapabilities(); err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world capability drop: %v\n", err)
		os.Exit(1)
	}
	if err := installSeccompFilter(); err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world seccomp filter: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "substrate: world seccomp reexec: missing target argv")
		os.Exit(1)
	}
	target := os.Args[1]
	if err := syscall.Exec(target, os.Args[1:], os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "substrate: world seccomp reexec exec failed: %v\n", err)
		os.Exit(1)
	}
}

// mountWorldRootfs mounts the overlay filesystem and minimal rootfs and
// pivot_roots into it, reading the directories linuxNative.Exec set up as
// SUBSTRATE_WORLD_* env vars. A reexec launched outside the world backend
// (SUBSTRATE_WORLD_MERGEDDIR unset, e.g. a future non-filesystem-isolated
// caller of the same reexec mechanism) skips straight to capability drop.
func mountWorldRootfs() error {
	merged := os.Getenv("SUBSTRATE_WORLD_MERGEDDIR")
	if merged == "" {
		return nil
	}
	lower := os.Getenv("SUBSTRATE_WORLD_LOWERDIR")
	upper := os.Getenv("SUBSTRATE_WORLD_UPPERDIR")
	work := os.Getenv("SUBSTRATE_WORLD_WORKDIR")

	if err := makeMountNamespacePrivate(); err != nil {
		return err
	}
	if err := mountOverlay(lower, upper, work, merged); err != nil {
		return err
	}
	if err := bindRootfs(merged); err != nil {
		return err
	}
	if err := pivotRoot(merged); err != nil {
		return err
	}
	if cwd := os.Getenv("SUBSTRATE_WORLD_CWD"); cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return fmt.Errorf("world: chdir to %s after pivot_root: %w", cwd, err)
		}
	}
	return nil
}
