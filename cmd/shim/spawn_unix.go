//go:build !windows

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package main

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// signalFromExitError extracts the 128+N convention's N when a child
// terminated by signal, per spec §4.2's exec semantics.
func signalFromExitError(exitErr *exec.ExitError) *int {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return nil
	}
	n := int(status.Signal())
	return &n
}

// spawnErrorKind classifies a failed syscall.Exec for the spawn_failed
// span's spawn_error_kind field (spec §4.2).
func spawnErrorKind(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT:
			return "not_found"
		case syscall.EACCES, syscall.EPERM:
			return "permission_denied"
		case syscall.ENOEXEC:
			return "not_executable"
		case syscall.E2BIG:
			return "argument_list_too_long"
		}
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return "path_error"
	}
	return "unknown"
}

func spawnErrno(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}
