/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// literalAssignment matches "K=V" where V contains no shell
// metacharacters, per spec §4.3's export builtin rule: anything fancier
// defers to the downstream shell so quoting/expansion stays correct.
var literalAssignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=([^$` + "`" + `'"\\|&;<>(){}]*)$`)

// builtinResult is what a builtin handler reports back to the
// evaluation pipeline for the command_complete span.
type builtinResult struct {
	exit     int
	deferred bool // true when a builtin form declined to handle input itself
}

// tryBuiltin attempts to handle cmd in-process. ok is false when cmd is
// not a recognized builtin at all, and also when a builtin form declines
// to handle the input itself, in which case result.deferred is true;
// either way the caller should hand it to the downstream shell or world.
func (s *Shell) tryBuiltin(cmd string) (result builtinResult, ok bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return builtinResult{}, false
	}

	switch fields[0] {
	case "cd":
		return builtinResult{exit: s.builtinCd(fields[1:])}, true
	case "pwd":
		return builtinResult{exit: s.builtinPwd()}, true
	case "exit", "quit":
		code := 0
		if len(fields) > 1 {
			fmt.Sscanf(fields[1], "%d", &code)
		}
		return builtinResult{exit: code}, true
	case "export":
		return s.builtinExport(cmd, fields[1:])
	case "unset":
		return builtinResult{exit: s.builtinUnset(fields[1:])}, true
	case "doctor":
		return builtinResult{exit: s.builtinDoctor()}, true
	default:
		return builtinResult{}, false
	}
}

func (s *Shell) builtinCd(args []string) int {
	target := ""
	if len(args) == 0 || args[0] == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cd:", err)
			return 1
		}
		target = home
	} else if args[0] == "-" {
		old := os.Getenv("OLDPWD")
		if old == "" {
			fmt.Fprintln(os.Stderr, "cd: OLDPWD not set")
			return 1
		}
		fmt.Println(old)
		target = old
	} else {
		target = expandTilde(args[0])
	}

	cwd, _ := os.Getwd()
	if err := os.Chdir(target); err != nil {
		fmt.Fprintln(os.Stderr, "cd:", err)
		return 1
	}
	newCwd, _ := os.Getwd()
	os.Setenv("OLDPWD", cwd)
	os.Setenv("PWD", newCwd)
	return 0
}

func expandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return home + path[1:]
	}
	return path
}

func (s *Shell) builtinPwd() int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pwd:", err)
		return 1
	}
	fmt.Println(cwd)
	return 0
}

// builtinExport handles only a literal "export K=V" (no expansion, no
// multiple assignments, no metacharacters in V); anything else is
// deferred to the downstream shell per spec §4.3.
func (s *Shell) builtinExport(raw string, args []string) (builtinResult, bool) {
	if len(args) != 1 {
		return builtinResult{deferred: true}, false
	}
	m := literalAssignment.FindStringSubmatch(args[0])
	if m == nil {
		return builtinResult{deferred: true}, false
	}
	key, val := m[1], m[2]
	os.Setenv(key, val)
	s.exported[key] = val
	return builtinResult{exit: 0}, true
}

func (s *Shell) builtinUnset(keys []string) int {
	for _, k := range keys {
		os.Unsetenv(k)
		delete(s.exported, k)
	}
	return 0
}

