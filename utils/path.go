/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ in path to the current user's home
// directory. Paths that don't start with ~ are returned unchanged.
// ~username expansion is not supported.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}

		if len(path) == 1 {
			return home, nil
		}

		// Accept both '/' and the platform separator so "~/.substrate" works
		// on Windows, where filepath.Separator is '\'.
		if path[1] == '/' || path[1] == filepath.Separator {
			path = filepath.Join(home, path[2:])
		} else {
			return "", fmt.Errorf("~username expansion is not supported, only ~ for the current user's home directory")
		}
	}

	return path, nil
}
