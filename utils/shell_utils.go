/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package utils

import (
	"os"
	"os/user"
)

// Indirection points for the OS calls below, so tests can stub them without
// touching real process/filesystem state.
var (
	osGetenv    = os.Getenv
	userCurrent = user.Current
)

// GetUserShell returns the current user's login shell, read from $SHELL.
func GetUserShell() string {
	return osGetenv("SHELL")
}

// GetHomeDir returns the current user's home directory.
func GetHomeDir() (string, error) {
	usr, err := userCurrent()
	if err != nil {
		return "", err
	}
	return usr.HomeDir, nil
}
