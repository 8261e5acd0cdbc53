//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// ExecPTY runs req inside handle's world with a real pty attached,
// streaming combined output to onOutput as it is produced rather than
// buffering it, so an interactive session sees output without waiting
// for the command to finish. It shares the same self-reexec seccomp
// and namespace setup as Exec.
func (b *linuxNative) ExecPTY(ctx context.Context, handle *Handle, req ExecRequest, stdin io.Reader, onOutput func([]byte)) (int, error) {
	b.mu.Lock()
	w, ok := b.sessions[handle.ID]
	b.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("world: unknown session %q", handle.ID)
	}

	var cmd *exec.Cmd
	if exe, err := os.Executable(); err == nil {
		cmd = exec.CommandContext(ctx, exe, "/bin/sh", "-c", req.Cmd)
		cmd.Env = append(buildEnv(req.Env), reexecMountEnv(w, req.Cwd)...)
	} else {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", req.Cmd)
		cmd.Env = buildEnv(req.Env)
	}
	cmd.Dir = w.mergedDir
	cmd.SysProcAttr = sysProcAttr(w.spec)

	master, err := pty.Start(cmd)
	if err != nil {
		return 0, fmt.Errorf("world: pty start failed: %w", err)
	}
	defer master.Close()

	_ = applyRlimits(cmd.Process.Pid, w.spec.Limits)
	w.cgroupPath = joinCgroup(b.opts.logger(), handle.ID, cmd.Process.Pid, w.spec.Limits)

	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		buf := make([]byte, 32*1024)
		for {
			n, err := master.Read(buf)
			if n > 0 {
				onOutput(append([]byte(nil), buf[:n]...))
			}
			if err != nil {
				return
			}
		}
	}()
	go func() { _, _ = io.Copy(master, stdin) }()

	runErr := cmd.Wait()
	<-copyDone

	exit := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if asExitError(runErr, &exitErr) {
			exit = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				exit = 128 + int(ws.Signal())
			}
		} else {
			return 0, fmt.Errorf("world: pty exec failed: %w", runErr)
		}
	}
	return exit, nil
}
