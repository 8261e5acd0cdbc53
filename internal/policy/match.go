/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"regexp"
	"strings"
)

// pattern wraps a compiled glob-like matcher. Patterns are spec §3.3's
// "glob-like path/command patterns": '*' matches any run of characters
// (including none, and including path separators — unlike filepath.Match,
// since command patterns like "git push --force*" and fs patterns like
// "/home/*/**" both need to span "/"), '?' matches exactly one character,
// everything else is literal.
type pattern struct {
	raw string
	re  *regexp.Regexp
}

func compilePattern(raw string) (*pattern, error) {
	re, err := regexp.Compile("^" + globToRegexp(raw) + "$")
	if err != nil {
		return nil, err
	}
	return &pattern{raw: raw, re: re}, nil
}

func (p *pattern) MatchString(s string) bool {
	return p.re.MatchString(s)
}

func globToRegexp(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// matchAny reports whether s matches any of the given raw glob patterns,
// compiling each on every call and skipping any that fail to compile.
// Evaluate and QuickCheck do not use it; they match against the
// patterns precompiled at load time.
func matchAny(patterns []string, s string) (matched bool, which string) {
	for _, raw := range patterns {
		p, err := compilePattern(raw)
		if err != nil {
			continue
		}
		if p.MatchString(s) {
			return true, raw
		}
	}
	return false, ""
}
