/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package shell

import "strings"

// shellMetaSubstrings are multi-character operators that require a
// downstream shell to interpret (spec §4.3 "needs-shell detection").
var shellMetaSubstrings = []string{"&&", "||", "<<", ">>", "<(", ">("}

// shellMetaChars are single characters with the same effect.
const shellMetaChars = "|&;<>`$"

// needsShell reports whether cmd contains any construct — a pipe,
// redirection, logical operator, here-doc marker, command substitution,
// or background marker — that only a real shell can interpret. Builtins
// never attempt to short-circuit such input; they defer to the
// downstream shell so quoting and expansion stay correct.
func needsShell(cmd string) bool {
	for _, op := range shellMetaSubstrings {
		if strings.Contains(cmd, op) {
			return true
		}
	}
	return strings.ContainsAny(cmd, shellMetaChars)
}
