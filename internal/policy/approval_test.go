/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonInteractivePrompter_AlwaysDenies(t *testing.T) {
	a, err := (NonInteractivePrompter{}).Prompt(ApprovalRequest{Command: "deploy prod"})
	assert.NoError(t, err)
	assert.False(t, a.Allow)
}

func TestTerminalPrompter_ParsesAnswers(t *testing.T) {
	cases := []struct {
		input      string
		wantAllow  bool
		wantScope  Scope
	}{
		{"once\n", true, ScopeOnce},
		{"session\n", true, ScopeSession},
		{"always\n", true, ScopeAlways},
		{"deny\n", false, ScopeOnce},
		{"\n", false, ScopeOnce},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tc.input), &out)
			a, err := p.Prompt(ApprovalRequest{Command: "deploy prod", Cwd: "/home/user", MatchedPattern: "deploy *"})
			assert.NoError(t, err)
			assert.Equal(t, tc.wantAllow, a.Allow)
			assert.Equal(t, tc.wantScope, a.Scope)
			assert.Contains(t, out.String(), "deploy prod")
		})
	}
}
