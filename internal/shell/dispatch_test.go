/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-run/substrate/internal/trace"
)

func TestControlFlowKeyword_DetectsBlocks(t *testing.T) {
	assert.True(t, controlFlowKeyword.MatchString("if [ -f x ]; then\necho hi\nfi\n"))
	assert.True(t, controlFlowKeyword.MatchString("for f in *.go; do\necho $f\ndone\n"))
	assert.False(t, controlFlowKeyword.MatchString("echo hi\npwd\n"))
}

func TestRunScript_LineByLinePersistsCwd(t *testing.T) {
	s, _ := newTracedShell(t)
	start, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(start)

	target := t.TempDir()
	script := filepath.Join(t.TempDir(), "script.sh")
	content := "cd " + target + "\npwd\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	exit, err := s.RunScript(context.Background(), script)
	assert.NoError(t, err)
	assert.Equal(t, 0, exit)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Contains(t, cwd, dirBase(target))
}

func TestRunScript_SkipsBlankAndCommentLines(t *testing.T) {
	s, path := newTracedShell(t)
	script := filepath.Join(t.TempDir(), "script.sh")
	content := "\n# a comment\n   \npwd\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	exit, err := s.RunScript(context.Background(), script)
	assert.NoError(t, err)
	assert.Equal(t, 0, exit)

	spans, err := trace.ReadSpans(path)
	require.NoError(t, err)
	// Only "pwd" should have produced spans: its command_start and
	// builtin_command spans both carry Command "pwd".
	count := 0
	for _, sp := range spans {
		if sp.Command == "pwd" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestRunScript_ControlFlowHandsWholeFileToDownstreamShell(t *testing.T) {
	s, _ := newTracedShell(t)
	script := filepath.Join(t.TempDir(), "script.sh")
	content := "if true; then\n  exit 0\nfi\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	exit, err := s.RunScript(context.Background(), script)
	assert.NoError(t, err)
	assert.Equal(t, 0, exit)
}

func TestRunPipe_StreamsLinesAndSkipsBlank(t *testing.T) {
	s, _ := newTracedShell(t)
	r := strings.NewReader("true\n\nfalse\n")
	exit := s.RunPipe(context.Background(), r)
	assert.Equal(t, 1, exit) // last line's exit code ("false")
}

func TestRunPipe_CIModeStopsOnFirstFailure(t *testing.T) {
	s, _ := newTracedShell(t)
	s.ci = true
	r := strings.NewReader("false\ntrue\n")
	exit := s.RunPipe(context.Background(), r)
	assert.Equal(t, 1, exit)
}

func TestRunWrap_ReturnsEvalExitCode(t *testing.T) {
	s, _ := newTracedShell(t)
	assert.Equal(t, 0, s.RunWrap(context.Background(), "true"))
	assert.Equal(t, 1, s.RunWrap(context.Background(), "false"))
}
