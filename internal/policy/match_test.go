/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompilePattern_Wildcard(t *testing.T) {
	p, err := compilePattern("rm -rf*")
	assert.NoError(t, err)
	assert.True(t, p.MatchString("rm -rf /"))
	assert.True(t, p.MatchString("rm -rf"))
	assert.False(t, p.MatchString("rm -r /"))
}

func TestCompilePattern_WildcardSpansPathSeparator(t *testing.T) {
	p, err := compilePattern("/home/*/secrets")
	assert.NoError(t, err)
	assert.True(t, p.MatchString("/home/alice/secrets"))
	assert.True(t, p.MatchString("/home/alice/bob/secrets"))
}

func TestCompilePattern_QuestionMark(t *testing.T) {
	p, err := compilePattern("v?.txt")
	assert.NoError(t, err)
	assert.True(t, p.MatchString("v1.txt"))
	assert.False(t, p.MatchString("v12.txt"))
}

func TestCompilePattern_LiteralMetacharactersEscaped(t *testing.T) {
	p, err := compilePattern("a.b+c")
	assert.NoError(t, err)
	assert.True(t, p.MatchString("a.b+c"))
	assert.False(t, p.MatchString("axbyc"))
}

func TestMatchAny_ReturnsFirstMatchingRaw(t *testing.T) {
	matched, which := matchAny([]string{"git *", "npm *"}, "npm install")
	assert.True(t, matched)
	assert.Equal(t, "npm *", which)
}

func TestMatchAny_NoMatch(t *testing.T) {
	matched, _ := matchAny([]string{"git *"}, "npm install")
	assert.False(t, matched)
}
