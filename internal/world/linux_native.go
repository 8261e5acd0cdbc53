//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/substrate-run/substrate/internal/trace"
)

// deniedSyscalls blocks the namespace-escape and host-damaging calls an
// isolated command should never need, mirrored from the namespace
// sandbox's seccomp denylist in the examples corpus (host process
// control, module loading, mount/root manipulation, ptrace-based
// injection).
var deniedSyscalls = []uint32{
	unix.SYS_MOUNT, unix.SYS_UMOUNT2, unix.SYS_REBOOT,
	unix.SYS_SWAPON, unix.SYS_SWAPOFF, unix.SYS_KEXEC_LOAD,
	unix.SYS_INIT_MODULE, unix.SYS_FINIT_MODULE, unix.SYS_DELETE_MODULE,
	unix.SYS_PIVOT_ROOT, unix.SYS_PTRACE,
}

// linuxNative implements Backend using Linux namespaces, an overlay
// filesystem for write isolation, a seccomp syscall filter, and prlimit
// resource caps. It is the common isolation core the macOS and Windows
// backends reach over an agent transport.
type linuxNative struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*linuxWorld // keyed by Handle.ID
}

type linuxWorld struct {
	spec       Spec
	upperDir   string
	workDir    string
	mergedDir  string
	lowerDir   string
	cgroupPath string
}

func newLinuxNative(opts Options) (Backend, error) {
	if !hasNamespaceCapability() {
		return nil, fmt.Errorf("world: linux native backend needs CAP_SYS_ADMIN or unprivileged user namespaces")
	}
	return &linuxNative{opts: opts, sessions: make(map[string]*linuxWorld)}, nil
}

func hasNamespaceCapability() bool {
	if os.Geteuid() == 0 {
		return true
	}
	var hdr unix.CapUserHeader
	var data unix.CapUserData
	hdr.Version = unix.LINUX_CAPABILITY_VERSION_1
	hdr.Pid = 0
	if err := unix.Capget(&hdr, &data); err == nil {
		if data.Effective&(1<<unix.CAP_SYS_ADMIN) != 0 {
			return true
		}
	}
	if val, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		return string(bytes.TrimSpace(val)) == "1"
	}
	return probeUserNamespace()
}

func probeUserNamespace() bool {
	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWUSER,
		UidMappings: []syscall.SysProcIDMap{{ContainerID: os.Getuid(), HostID: os.Getuid(), Size: 1}},
		GidMappings: []syscall.SysProcIDMap{{ContainerID: os.Getgid(), HostID: os.Getgid(), Size: 1}},
	}
	return cmd.Run() == nil
}

// EnsureSession provisions (or reuses) the overlay directories a session
// world needs. The world's upper and work directories are created as
// siblings under the same temp root so they satisfy the spec §3.5
// invariant that they share a filesystem.
func (b *linuxNative) EnsureSession(ctx context.Context, spec Spec) (*Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if spec.ReuseSession {
		for id, w := range b.sessions {
			if w.compatibleWith(spec) {
				return &Handle{ID: id}, nil
			}
		}
	}

	root, err := os.MkdirTemp("", "substrate-world-*")
	if err != nil {
		return nil, fmt.Errorf("world: create world root: %w", err)
	}
	w := &linuxWorld{
		spec:      spec,
		upperDir:  filepath.Join(root, "upper"),
		workDir:   filepath.Join(root, "work"),
		mergedDir: filepath.Join(root, "merged"),
		lowerDir:  spec.ProjectDir,
	}
	for _, dir := range []string{w.upperDir, w.workDir, w.mergedDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("world: create overlay dir %s: %w", dir, err)
		}
	}

	id := filepath.Base(root)
	b.sessions[id] = w

	if b.opts.Metrics != nil {
		b.opts.Metrics.SessionsTotal.WithLabelValues(string(NameLinuxNative), "ok").Inc()
		b.opts.Metrics.SessionsActive.Inc()
	}
	return &Handle{ID: id}, nil
}

func (w *linuxWorld) compatibleWith(spec Spec) bool {
	return w.spec.IsolateNetwork == spec.IsolateNetwork && w.spec.ProjectDir == spec.ProjectDir
}

// Exec runs req.Cmd inside the namespaces, applying resource limits via
// prlimit after start and a seccomp filter before exec, grounded
// directly on the namespace sandbox's Exec/PostStart split (the filter
// and limits can only be applied from inside the child, respectively
// immediately after fork and immediately before exec).
func (b *linuxNative) Exec(ctx context.Context, handle *Handle, req ExecRequest) (*ExecResult, error) {
	b.mu.Lock()
	w, ok := b.sessions[handle.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("world: unknown session %q", handle.ID)
	}

	var cmd *exec.Cmd
	if exe, err := os.Executable(); err == nil {
		cmd = exec.CommandContext(ctx, exe, "/bin/sh", "-c", req.Cmd)
		cmd.Env = append(buildEnv(req.Env), reexecMountEnv(w, req.Cwd)...)
	} else {
		// Fall back to running without the seccomp filter rather than
		// failing the command outright; resolution of our own
		// executable should never realistically fail.
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", req.Cmd)
		cmd.Env = buildEnv(req.Env)
	}
	// cmd.Dir is resolved before the child's own main() runs (as part of
	// the clone+chdir fork sequence), i.e. before the overlay is mounted,
	// so it can only point at the merged root itself; the requested cwd
	// is applied post-pivot via SUBSTRATE_WORLD_CWD instead.
	cmd.Dir = w.mergedDir
	cmd.SysProcAttr = sysProcAttr(w.spec)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("world: spawn failed: %w", err)
	}
	_ = applyRlimits(cmd.Process.Pid, w.spec.Limits)
	w.cgroupPath = joinCgroup(b.opts.logger(), handle.ID, cmd.Process.Pid, w.spec.Limits)
	runErr := cmd.Wait()
	duration := time.Since(start)

	result := &ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	exitClass := "ok"
	if runErr != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(runErr, &exitErr); ok {
			result.Exit = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				result.Exit = 128 + int(ws.Signal())
			}
			exitClass = "nonzero"
		} else {
			return nil, fmt.Errorf("world: spawn failed: %w", runErr)
		}
	}

	diff, err := b.computeFsDiff(w)
	if err == nil {
		result.FsDiff = diff
	}

	if b.opts.Metrics != nil {
		b.opts.Metrics.ExecTotal.WithLabelValues(string(NameLinuxNative), exitClass).Inc()
		b.opts.Metrics.ExecDuration.WithLabelValues(string(NameLinuxNative)).Observe(duration.Seconds())
	}
	return result, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

// reexecMountEnv carries the overlay directories and target cwd across the
// self-reexec into SUBSTRATE_WORLD_* variables RunSeccompReexecChild reads
// to mount the overlay, bind the rootfs, and pivot_root before the seccomp
// filter goes on and the real command is exec'd.
func reexecMountEnv(w *linuxWorld, cwd string) []string {
	return []string{
		reexecEnvVar + "=1",
		"SUBSTRATE_WORLD_LOWERDIR=" + w.lowerDir,
		"SUBSTRATE_WORLD_UPPERDIR=" + w.upperDir,
		"SUBSTRATE_WORLD_WORKDIR=" + w.workDir,
		"SUBSTRATE_WORLD_MERGEDDIR=" + w.mergedDir,
		"SUBSTRATE_WORLD_CWD=" + cwd,
	}
}

func buildEnv(extra map[string]string) []string {
	env := make([]string, 0, len(extra)+1)
	if _, ok := extra["PATH"]; !ok {
		env = append(env, "PATH=/usr/bin:/bin")
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// sysProcAttr builds the clone flags for namespace isolation. Network
// namespace isolation is conditional on the spec's IsolateNetwork flag,
// mirroring the sandbox's NetworkNeed-gated CLONE_NEWNET.
func sysProcAttr(spec Spec) *syscall.SysProcAttr {
	flags := uintptr(syscall.CLONE_NEWNS | syscall.CLONE_NEWPID | syscall.CLONE_NEWIPC)
	if spec.IsolateNetwork {
		flags |= syscall.CLONE_NEWNET
	}

	attr := &syscall.SysProcAttr{Cloneflags: flags}
	if os.Geteuid() != 0 {
		attr.Cloneflags |= syscall.CLONE_NEWUSER
		uid, gid := os.Getuid(), os.Getgid()
		attr.UidMappings = []syscall.SysProcIDMap{{ContainerID: uid, HostID: uid, Size: 1}}
		attr.GidMappings = []syscall.SysProcIDMap{{ContainerID: gid, HostID: gid, Size: 1}}
	}
	return attr
}

func applyRlimits(pid int, limits Limits) error {
	var firstErr error
	if limits.CPU > 0 {
		lim := unix.Rlimit{Cur: uint64(limits.CPU.Seconds()), Max: uint64(limits.CPU.Seconds())}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, &lim, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if limits.Memory > 0 {
		mem := uint64(limits.Memory)
		const minVAS = 4 * 1024 * 1024 * 1024
		if mem < minVAS {
			mem = minVAS
		}
		lim := unix.Rlimit{Cur: mem, Max: mem}
		if err := unix.Prlimit(pid, unix.RLIMIT_AS, &lim, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// computeFsDiff walks the overlay's upper directory, which contains
// exactly the files an isolated command wrote, modified, or whited-out
// (deleted), and classifies each against the lower (project) directory.
// Above FsDiffCap entries the enumeration is replaced by a SHA-256 tree
// hash over the sorted relative paths (spec §3.5).
func (b *linuxNative) computeFsDiff(w *linuxWorld) (*trace.FsDiff, error) {
	var writes, mods, deletes []string

	err := filepath.WalkDir(w.upperDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.upperDir, path)
		if err != nil {
			return nil
		}
		// overlayfs records a deleted lower file as a character-device
		// whiteout in the upper directory.
		if d.Type()&fs.ModeCharDevice != 0 {
			deletes = append(deletes, rel)
			return nil
		}
		lowerPath := filepath.Join(w.lowerDir, rel)
		if _, statErr := os.Stat(lowerPath); statErr == nil {
			mods = append(mods, rel)
		} else {
			writes = append(writes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("world: walk overlay upper dir: %w", err)
	}

	total := len(writes) + len(mods) + len(deletes)
	diff := &trace.FsDiff{Writes: writes, Mods: mods, Deletes: deletes}
	if total > FsDiffCap {
		all := append(append(append([]string{}, writes...), mods...), deletes...)
		sort.Strings(all)
		h := sha256.New()
		for _, p := range all {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
		diff.Writes, diff.Mods, diff.Deletes = nil, nil, nil
		diff.Truncated = true
		diff.TreeHash = hex.EncodeToString(h.Sum(nil))
		diff.Summary = fmt.Sprintf("%d paths changed (truncated)", total)
	}
	if b.opts.Metrics != nil {
		b.opts.Metrics.FsDiffBytes.WithLabelValues(string(NameLinuxNative)).Observe(float64(total))
	}
	return diff, nil
}

func (b *linuxNative) FsDiff(ctx context.Context, handle *Handle, spanID string) (*trace.FsDiff, error) {
	b.mu.Lock()
	w, ok := b.sessions[handle.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("world: unknown session %q", handle.ID)
	}
	return b.computeFsDiff(w)
}

// ApplyPolicy is a no-op beyond updating the in-memory spec that later
// Exec calls read; it installs no network allowlist, and no stub
// resolver or IP set enforces AllowedDomains.
func (b *linuxNative) ApplyPolicy(ctx context.Context, handle *Handle, spec Spec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.sessions[handle.ID]
	if !ok {
		return fmt.Errorf("world: unknown session %q", handle.ID)
	}
	w.spec = spec
	return nil
}

func (b *linuxNative) Close(ctx context.Context, handle *Handle) error {
	b.mu.Lock()
	w, ok := b.sessions[handle.ID]
	delete(b.sessions, handle.ID)
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if b.opts.Metrics != nil {
		b.opts.Metrics.SessionsActive.Dec()
	}
	// No explicit unmount step: every mount mountOverlay/bindRootfs/pivotRoot
	// make lives in the command's own private mount namespace (CLONE_NEWNS),
	// torn down by the kernel the instant its last process exits, which
	// already happened by the time Close runs.
	leaveCgroup(w.cgroupPath)
	if b.opts.logger() != nil {
		b.opts.logger().Debug("world session closed", zap.String("id", handle.ID))
	}
	return os.RemoveAll(filepath.Dir(w.upperDir))
}
