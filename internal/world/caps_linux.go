//go:build linux

/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// dropCapabilities clears the process's entire capability set (bounding,
// effective, permitted, inheritable) so the command that replaces this
// process via execve gains nothing back even as root inside a user
// namespace. Must run after any CAP_SYS_ADMIN-requiring mount work and
// before installSeccompFilter, since PR_SET_NO_NEW_PRIVS plus an empty
// capability set is what makes the no-new-privileges guarantee hold across
// exec.
func dropCapabilities() error {
	for capNum := uintptr(0); capNum <= unix.CAP_LAST_CAP; capNum++ {
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, capNum, 0, 0, 0); err != nil && err != unix.EINVAL {
			return fmt.Errorf("world: drop bounding capability %d: %w", capNum, err)
		}
	}
	hdr := unix.CapUserHeader{Version: unix.LINUX_CAPABILITY_VERSION_3}
	data := [2]unix.CapUserData{}
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return fmt.Errorf("world: clear capability sets: %w", err)
	}
	return nil
}
