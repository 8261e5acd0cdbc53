//go:build windows

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package main

import (
	"errors"
	"os/exec"
	"syscall"
)

// signalFromExitError is always nil on Windows: there is no POSIX
// signal-termination concept to report.
func signalFromExitError(exitErr *exec.ExitError) *int {
	return nil
}

func spawnErrorKind(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ERROR_FILE_NOT_FOUND, syscall.ERROR_PATH_NOT_FOUND:
			return "not_found"
		case syscall.ERROR_ACCESS_DENIED:
			return "permission_denied"
		}
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
