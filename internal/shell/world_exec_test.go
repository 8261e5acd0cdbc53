/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-run/substrate/internal/trace"
	"github.com/substrate-run/substrate/internal/world"
)

// fakeBackend is a minimal world.Backend double for exercising the
// shell's session-vs-ephemeral routing without a real sandbox.
type fakeBackend struct {
	sessions  int
	ephemeral int
	lastReq   world.ExecRequest
	closed    []string
}

func (f *fakeBackend) EnsureSession(ctx context.Context, spec world.Spec) (*world.Handle, error) {
	if spec.AlwaysIsolate {
		f.ephemeral++
		return &world.Handle{ID: "ephemeral"}, nil
	}
	f.sessions++
	return &world.Handle{ID: "session"}, nil
}

func (f *fakeBackend) Exec(ctx context.Context, handle *world.Handle, req world.ExecRequest) (*world.ExecResult, error) {
	f.lastReq = req
	return &world.ExecResult{Exit: 0}, nil
}

func (f *fakeBackend) FsDiff(ctx context.Context, handle *world.Handle, spanID string) (*trace.FsDiff, error) {
	return nil, nil
}

func (f *fakeBackend) ApplyPolicy(ctx context.Context, handle *world.Handle, spec world.Spec) error {
	return nil
}

func (f *fakeBackend) Close(ctx context.Context, handle *world.Handle) error {
	f.closed = append(f.closed, handle.ID)
	return nil
}

func TestRunInWorld_ReusesSessionWorldAcrossCalls(t *testing.T) {
	fb := &fakeBackend{}
	s, _ := newTracedShell(t)
	s.backend = fb

	s.runInWorld(context.Background(), "echo hi", "/tmp", false, "cmd-1")
	s.runInWorld(context.Background(), "echo hi again", "/tmp", false, "cmd-2")

	assert.Equal(t, 1, fb.sessions, "session world should be provisioned once and reused")
	assert.Equal(t, 0, fb.ephemeral)
}

func TestRunInWorld_IsolatedGetsFreshEphemeralWorldAndCloses(t *testing.T) {
	fb := &fakeBackend{}
	s, _ := newTracedShell(t)
	s.backend = fb

	s.runInWorld(context.Background(), "rm -rf /", "/tmp", true, "cmd-3")

	assert.Equal(t, 1, fb.ephemeral)
	assert.Equal(t, 0, fb.sessions)
	require.Len(t, fb.closed, 1)
	assert.Equal(t, "ephemeral", fb.closed[0])
}

func TestExportedEnv_NilWhenEmpty(t *testing.T) {
	assert.Nil(t, exportedEnv(nil))
	assert.Nil(t, exportedEnv(map[string]string{}))
}

func TestExportedEnv_CopiesValues(t *testing.T) {
	in := map[string]string{"A": "1"}
	out := exportedEnv(in)
	out["A"] = "2"
	assert.Equal(t, "1", in["A"])
}
