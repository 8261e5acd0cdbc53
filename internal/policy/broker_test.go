/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePolicy(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0o644))
}

func newTestBroker(t *testing.T, yamlBody string) *Broker {
	t.Helper()
	dir := t.TempDir()
	writePolicy(t, dir, "default.yaml", yamlBody)
	b, err := New(zap.NewNop(), dir, "")
	require.NoError(t, err)
	return b
}

func TestBroker_EvaluateDenyWins(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
commands:
  denied: ["rm -rf /*"]
`)
	d := b.Evaluate("rm -rf /", "/home/user", "")
	assert.Equal(t, ActionDeny, d.Action)
}

func TestBroker_EvaluateIsolatedAllowsWithRestriction(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
commands:
  isolated: ["curl *"]
`)
	d := b.Evaluate("curl https://example.com", "/home/user", "")
	assert.Equal(t, ActionAllow, d.Action)
	assert.True(t, d.HasRestriction(RestrictionIsolatedWorld))
}

func TestBroker_EvaluateNonEmptyAllowedRequiresMatch(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
commands:
  allowed: ["git *", "npm *"]
`)
	assert.Equal(t, ActionAllow, b.Evaluate("git status", "/home/user", "").Action)
	assert.Equal(t, ActionDeny, b.Evaluate("python evil.py", "/home/user", "").Action)
}

func TestBroker_ObserveModeDowngradesDenyToAllow(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: observe
commands:
  denied: ["rm -rf /*"]
`)
	d := b.Evaluate("rm -rf /", "/home/user", "")
	assert.Equal(t, ActionAllow, d.Action)
	assert.True(t, d.WouldDeny)
}

func TestBroker_EmptyAllowedListPermitsEverything(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
`)
	d := b.Evaluate("echo hi", "/home/user", "")
	assert.Equal(t, ActionAllow, d.Action)
}

func TestBroker_QuickCheckOnlyConsultsDenied(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
commands:
  denied: ["rm -rf /*"]
  allowed: ["git *"]
`)
	// QuickCheck ignores the allowed bucket entirely: a command matching
	// neither denied nor allowed still passes QuickCheck, since only the
	// shell's full Evaluate is responsible for allow-list enforcement.
	d := b.QuickCheck([]string{"python", "evil.py"}, "/home/user")
	assert.Equal(t, ActionAllow, d.Action)

	d = b.QuickCheck([]string{"rm", "-rf", "/"}, "/home/user")
	assert.Equal(t, ActionDeny, d.Action)
}

func TestBroker_ReloadRejectsInvalidWithoutClobberingActive(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "default.yaml", `
id: default
name: default
mode: enforce
commands:
  denied: ["rm -rf /*"]
`)
	b, err := New(zap.NewNop(), dir, "")
	require.NoError(t, err)

	writePolicy(t, dir, "broken.yaml", "name: missing-id\n")
	err = b.Reload()
	assert.Error(t, err)

	// The previously loaded "default" policy must still be active.
	d := b.Evaluate("rm -rf /", "/home/user", "")
	assert.Equal(t, ActionDeny, d.Action)
}

func TestBroker_ReloadClearsApprovalCache(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "default.yaml", `
id: default
name: default
mode: enforce
approval:
  interactive: true
`)
	b, err := New(zap.NewNop(), dir, "")
	require.NoError(t, err)
	b.cache.Record("default", "/home/user", "deploy prod", ScopeAlways)
	assert.True(t, b.cache.Lookup("default", "/home/user", "deploy prod"))

	require.NoError(t, b.Reload())
	assert.False(t, b.cache.Lookup("default", "/home/user", "deploy prod"))
}

func TestBroker_ApprovalAutoApprovePattern(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
approval:
  interactive: true
  auto_approve: ["git status"]
`)
	d := b.Evaluate("git status", "/home/user", "")
	assert.Equal(t, ActionAllow, d.Action)
}

func TestBroker_ApprovalNonInteractivePrompterDeniesByDefault(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
approval:
  interactive: true
`)
	d := b.Evaluate("deploy prod", "/home/user", "")
	assert.Equal(t, ActionDeny, d.Action)
}

type stubPrompter struct {
	answer ApprovalAnswer
}

func (s stubPrompter) Prompt(ApprovalRequest) (ApprovalAnswer, error) {
	return s.answer, nil
}

func TestBroker_ApprovalPrompterAllowsAndCaches(t *testing.T) {
	b := newTestBroker(t, `
id: default
name: default
mode: enforce
approval:
  interactive: true
`)
	b.SetPrompter(stubPrompter{answer: ApprovalAnswer{Allow: true, Scope: ScopeSession}})

	d := b.Evaluate("deploy prod", "/home/user", "")
	assert.Equal(t, ActionAllow, d.Action)
	assert.True(t, b.cache.Lookup("default", "/home/user", "deploy prod"))
}

func TestBroker_WatchReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "default.yaml", `
id: default
name: default
mode: enforce
`)
	b, err := New(zap.NewNop(), dir, "")
	require.NoError(t, err)
	require.NoError(t, b.Watch())
	defer b.Stop()

	assert.Equal(t, ActionAllow, b.Evaluate("rm -rf /", "/home/user", "").Action)

	writePolicy(t, dir, "default.yaml", `
id: default
name: default
mode: enforce
commands:
  denied: ["rm -rf /*"]
`)

	require.Eventually(t, func() bool {
		return b.Evaluate("rm -rf /", "/home/user", "").Action == ActionDeny
	}, 2*time.Second, 20*time.Millisecond)
}
