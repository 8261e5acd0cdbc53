/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_EmitStampsTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")
	w, err := NewWriter(path, 0, false, false)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Emit(Span{EventType: EventCommandStart, SessionID: "s1", CmdID: "c1"}))

	spans, err := ReadSpans(path)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.NotEmpty(t, spans[0].TS)
}

func TestWriter_RedactsCommandAndArgv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")
	w, err := NewWriter(path, 0, false, false)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Emit(Span{
		EventType: EventCommandStart,
		Command:   "curl token=abc123",
		Argv:      []string{"curl", "--token", "abc123"},
	}))

	spans, err := ReadSpans(path)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "curl token=***", spans[0].Command)
	assert.Equal(t, []string{"curl", "***", "***"}, spans[0].Argv)
}

func TestWriter_RawBypassesRedaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")
	w, err := NewWriter(path, 0, false, true)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Emit(Span{
		EventType: EventCommandStart,
		Command:   "curl token=abc123",
		Argv:      []string{"curl", "--token", "abc123"},
	}))

	spans, err := ReadSpans(path)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "curl token=abc123", spans[0].Command)
	assert.Equal(t, []string{"curl", "--token", "abc123"}, spans[0].Argv)
}

func TestWriter_RotatesOnSizeCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")

	w, err := NewWriter(path, 64, false, true)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, w.Emit(Span{EventType: EventCommandStart, SessionID: "s1", CmdID: "c1", Command: "echo hi"}))
	}

	rotated := path + ".1"
	_, err = os.Stat(rotated)
	assert.NoError(t, err, "expected a rotated file at %s", rotated)

	_, err = os.Stat(path)
	assert.NoError(t, err, "expected a fresh file at the live path")
}

func TestWriter_OpenHandleKeepsWritingToRotatedFile(t *testing.T) {
	// Exercises the POSIX rename semantics the rotation contract (spec
	// §4.1/§6.1) relies on: a writer that already has the file open by
	// descriptor must keep appending to the renamed inode, not error out,
	// after another rotate() call renames the live path out from under it.
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")

	w, err := NewWriter(path, 0, false, true)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Emit(Span{EventType: EventCommandStart, CmdID: "c1"}))

	require.NoError(t, os.Rename(path, path+".1"))

	require.NoError(t, w.Emit(Span{EventType: EventCommandComplete, CmdID: "c1"}))

	spans, err := ReadSpans(path + ".1")
	require.NoError(t, err)
	require.Len(t, spans, 2, "writer should keep appending to the renamed file through its open descriptor")
}

func TestWriter_EmitWithoutMetricsDoesNotPanic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.jsonl")
	w, err := NewWriter(path, 0, false, true)
	require.NoError(t, err)
	defer w.Close()

	// SetMetrics with nil is a no-op; Emit must not panic when no metrics
	// are wired at all (the default state before SetMetrics is called).
	require.NoError(t, w.Emit(Span{EventType: EventCommandStart}))
}
