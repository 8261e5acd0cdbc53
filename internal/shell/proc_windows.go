//go:build windows

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import "os/exec"

// startWithProcessGroup starts c normally; Windows has no POSIX process
// group concept, and console control events are delivered to the whole
// console process group automatically.
func startWithProcessGroup(c *exec.Cmd) error {
	return c.Start()
}

// signalFromExitError is always nil on Windows: exec.ExitError.Sys()
// does not expose a POSIX wait status.
func signalFromExitError(exitErr *exec.ExitError) *int {
	return nil
}

// forwardSignal is a no-op on Windows: there is no POSIX process group
// to signal, and Go's os.Process.Signal only supports os.Kill here.
func forwardSignal(pgid int, sig int) error {
	return nil
}
