package substraterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesKindAndCause(t *testing.T) {
	cause := errors.New("no such file")
	err := Wrap(KindResolution, "command not found", cause)

	assert.Contains(t, err.Error(), string(KindResolution))
	assert.Contains(t, err.Error(), "command not found")
	assert.Contains(t, err.Error(), "no such file")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindSpawn, "exec failed", cause)

	assert.ErrorIs(t, err, cause)
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(KindPolicyDenial, "sudo * matched deny list")
	assert.True(t, Is(err, KindPolicyDenial))
	assert.False(t, Is(err, KindSpawn))
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	base := New(KindWorldUnavailable, "namespace creation failed")
	wrapped := fmt.Errorf("ensure_session: %w", base)
	assert.True(t, Is(wrapped, KindWorldUnavailable))
}

func TestWithCmdID_DoesNotMutateOriginal(t *testing.T) {
	err := New(KindPolicyDenial, "denied")
	withID := err.WithCmdID("01ABC")

	assert.Empty(t, err.CmdID)
	assert.Equal(t, "01ABC", withID.CmdID)
}
