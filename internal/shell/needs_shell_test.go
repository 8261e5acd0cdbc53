/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsShell(t *testing.T) {
	cases := []struct {
		cmd  string
		want bool
	}{
		{"ls -la", false},
		{"echo hi", false},
		{"git status", false},
		{"echo a && echo b", true},
		{"cmd1 || cmd2", true},
		{"ls | grep foo", true},
		{"echo hi > out.txt", true},
		{"cat <<EOF", true},
		{"echo $(date)", true},
		{"echo a; echo b", true},
		{"foo & ", true},
		{"echo `date`", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, needsShell(c.cmd), "needsShell(%q)", c.cmd)
	}
}
