/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package main

import (
	"os"
	"os/exec"
)

// runChildSubprocess forks, execs resolved with argv[0] preserved as
// cmdName, inherits stdio directly, and waits — spec §4.2 step 4 requires
// the shim to wait and emit command_complete afterward, rather than
// replacing itself the way the bypass path does.
func runChildSubprocess(resolved, cmdName string, argv, env []string) (exit int, termSignal *int, spawnErr error) {
	c := &exec.Cmd{
		Path: resolved,
		Args: append([]string{cmdName}, argv...),
		Env:  env,
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	if err := c.Start(); err != nil {
		return -1, nil, err
	}
	waitErr := c.Wait()
	if waitErr == nil {
		return 0, nil, nil
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode(), signalFromExitError(exitErr), nil
	}
	return -1, nil, waitErr
}
