/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEgressLimiter_NilBudgetIsUnrestricted(t *testing.T) {
	assert.Nil(t, NewEgressLimiter(nil))
	assert.Nil(t, NewEgressLimiter(&EgressBudget{}))
}

func TestEgressLimiter_Wrap_NilPassesThrough(t *testing.T) {
	var l *EgressLimiter
	var buf bytes.Buffer
	w := l.Wrap(&buf)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())
}

func TestEgressLimiter_TotalBytesCapsWrites(t *testing.T) {
	l := NewEgressLimiter(&EgressBudget{TotalBytes: 3})
	require.NotNil(t, l)
	var buf bytes.Buffer
	w := l.Wrap(&buf)

	n, err := w.Write([]byte("hello"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", buf.String())

	n, err = w.Write([]byte("x"))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestEgressLimiter_UnboundedTotalBytesAllowsFullWrite(t *testing.T) {
	l := NewEgressLimiter(&EgressBudget{BytesPerSec: 1 << 20})
	require.NotNil(t, l)
	var buf bytes.Buffer
	w := l.Wrap(&buf)

	n, err := w.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}
