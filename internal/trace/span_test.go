/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_IsRFC3339MillisUTC(t *testing.T) {
	ts := Now()
	parsed, err := time.Parse("2006-01-02T15:04:05.000Z", ts)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 2*time.Second)
}

func TestBoolPtrIntPtr(t *testing.T) {
	b := BoolPtr(true)
	i := IntPtr(42)
	assert.NotNil(t, b)
	assert.True(t, *b)
	assert.NotNil(t, i)
	assert.Equal(t, 42, *i)
}

func TestSpan_CommandCompleteReferencesEarlierStart(t *testing.T) {
	// Exercises the testable property from spec §8: a command_complete span
	// must share its cmd_id with an earlier command_start span in the same
	// trace file.
	dir := t.TempDir()
	path := dir + "/trace.jsonl"
	w, err := NewWriter(path, 0, false, true)
	assert.NoError(t, err)
	defer w.Close()

	assert.NoError(t, w.Emit(Span{EventType: EventCommandStart, CmdID: "c1", Command: "echo hi"}))
	assert.NoError(t, w.Emit(Span{EventType: EventCommandComplete, CmdID: "c1", ExitCode: IntPtr(0)}))

	spans, err := ReadSpans(path)
	assert.NoError(t, err)
	assert.Len(t, spans, 2)

	seenStart := map[string]bool{}
	for _, s := range spans {
		if s.EventType == EventCommandStart {
			seenStart[s.CmdID] = true
		}
		if s.EventType == EventCommandComplete {
			assert.True(t, seenStart[s.CmdID], "command_complete for %s must follow a command_start", s.CmdID)
		}
	}
}
