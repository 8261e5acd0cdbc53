/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact_KeyValuePairs(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"token", "token=abc123", "token=***"},
		{"password case-insensitive", "PASSWORD=hunter2", "PASSWORD=***"},
		{"secret embedded", "--secret=topsecret extra", "--secret=*** extra"},
		{"apikey", "apikey=sk-xyz", "apikey=***"},
		{"no match leaves text alone", "hello world", "hello world"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Redact(tc.input))
		})
	}
}

func TestRedact_Idempotent(t *testing.T) {
	inputs := []string{
		"token=abc123 password=hunter2",
		"plain text with no secrets",
		"key=value1 secret=value2",
	}
	for _, in := range inputs {
		once := Redact(in)
		twice := Redact(once)
		assert.Equal(t, once, twice, "Redact should be idempotent for %q", in)
	}
}

func TestRedactArgv_FlagValuePairs(t *testing.T) {
	argv := []string{"curl", "--token", "abc123", "https://example.com"}
	got := RedactArgv(argv)
	assert.Equal(t, []string{"curl", "***", "***", "https://example.com"}, got)
}

func TestRedactArgv_HeaderPreservesName(t *testing.T) {
	argv := []string{"curl", "-H", "Authorization: Bearer deadbeef"}
	got := RedactArgv(argv)
	assert.Equal(t, []string{"curl", "***", "Authorization: ***"}, got)
}

func TestRedactArgv_HeaderNonSensitiveUnchanged(t *testing.T) {
	argv := []string{"curl", "-H", "Content-Type: application/json"}
	got := RedactArgv(argv)
	assert.Equal(t, []string{"curl", "***", "Content-Type: application/json"}, got)
}

func TestRedactArgv_UserFlagCollapses(t *testing.T) {
	argv := []string{"curl", "-u", "alice:hunter2"}
	got := RedactArgv(argv)
	assert.Equal(t, []string{"curl", "***", "***"}, got)
}

func TestRedactArgv_DoesNotMutateInput(t *testing.T) {
	argv := []string{"curl", "--password", "hunter2"}
	_ = RedactArgv(argv)
	assert.Equal(t, "hunter2", argv[2], "RedactArgv must not mutate its input slice")
}

func TestRedactArgv_Idempotent(t *testing.T) {
	argv := []string{"curl", "--token", "abc123", "-H", "Authorization: Bearer xyz"}
	once := RedactArgv(argv)
	twice := RedactArgv(once)
	assert.Equal(t, once, twice)
}

func TestIsSensitiveHeader(t *testing.T) {
	assert.True(t, IsSensitiveHeader("Authorization"))
	assert.True(t, IsSensitiveHeader("x-api-key"))
	assert.True(t, IsSensitiveHeader("Cookie"))
	assert.False(t, IsSensitiveHeader("Content-Type"))
	assert.False(t, IsSensitiveHeader("Accept"))
}
