/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// RunWrap executes a single command string and returns its exit code
// (spec §4.3 "Wrap" mode).
func (s *Shell) RunWrap(ctx context.Context, cmd string) int {
	return s.Eval(ctx, cmd).Exit
}

// controlFlowKeyword matches shell control-structure keywords that only
// make sense when the whole script is interpreted as one unit; a script
// containing any of them is hand-off to the downstream shell whole
// rather than split line-by-line, per spec §4.3's "file is handed as a
// whole" clause.
var controlFlowKeyword = regexp.MustCompile(`(?m)^\s*(if|for|while|case|function|until)\b`)

// RunScript executes path line-by-line, with shell state (cwd, exported
// variables) persisting across lines since every line runs through the
// same Eval pipeline in this process. If the script uses shell control
// structures that cannot be split by line without breaking semantics,
// the whole file is instead handed to the downstream shell as a single
// unit (spec §4.3 "Script" mode).
func (s *Shell) RunScript(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("shell: read script: %w", err)
	}
	content := string(data)

	if controlFlowKeyword.MatchString(content) {
		return s.runScriptWhole(ctx, content)
	}

	exit := 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		result := s.Eval(ctx, line)
		exit = result.Exit
		if result.Shutdown {
			return exit, nil
		}
		if exit != 0 && s.ci && !s.noExitOnError {
			return exit, nil
		}
	}
	return exit, nil
}

// runScriptWhole hands content to the downstream shell as a single unit
// rather than splitting it into per-line Eval calls, so control
// structures spanning multiple lines keep their semantics. It still
// goes through the broker, trace log, and world exactly like any other
// external command, using the whole script text as the "command".
func (s *Shell) runScriptWhole(ctx context.Context, content string) (int, error) {
	result := s.Eval(ctx, content)
	return result.Exit, result.Err
}

// RunPipe reads lines from r and executes each as it arrives, without
// buffering the whole stream, per spec §4.3 "Pipe" mode. In CI mode the
// first non-zero exit terminates the run unless noExitOnError is set.
func (s *Shell) RunPipe(ctx context.Context, r io.Reader) int {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	exit := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result := s.Eval(ctx, line)
		exit = result.Exit
		if result.Shutdown {
			break
		}
		if exit != 0 && s.ci && !s.noExitOnError {
			break
		}
	}
	return exit
}
