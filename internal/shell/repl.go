/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
)

// historyPath is where the interactive REPL persists command history
// across sessions, grounded on the teacher's own history file under the
// user's config directory.
func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/substrate/history"
}

// RunInteractive runs the line-editor REPL (spec §4.3 "Interactive"
// mode). After any command completes — including one that allocated a
// PTY — the loop immediately re-prompts; no separate "repaint" step is
// needed since Prompt() is called again unconditionally, satisfying the
// suspension/resume contract spec §5 requires without extra machinery.
func (s *Shell) RunInteractive(ctx context.Context) int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(false) // Ctrl-C is handled by our own signal forwarding, not liner's abort

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	stopSignals := s.installSignalHandling()
	defer stopSignals()

	for {
		input, err := line.Prompt(s.promptString())
		if err != nil {
			if err == liner.ErrPromptAborted {
				fmt.Println()
				continue
			}
			// EOF (Ctrl-D) ends the session cleanly.
			break
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		line.AppendHistory(trimmed)

		result := s.Eval(ctx, trimmed)
		if result.Err != nil {
			fmt.Fprintln(os.Stderr, "substrate:", result.Err)
		}
		if result.Shutdown {
			s.saveHistory(line, histPath)
			return result.Exit
		}
	}

	s.saveHistory(line, histPath)
	return s.LastExitCode()
}

func (s *Shell) saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(dirOf(path), 0o700); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

func (s *Shell) promptString() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "substrate> "
	}
	return shortenPath(cwd) + " substrate> "
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
