/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalCache_OnceIsConsumedAfterOneLookup(t *testing.T) {
	c := NewApprovalCache("")
	c.Record("p1", "/proj", "rm *", ScopeOnce)

	assert.True(t, c.Lookup("p1", "/proj", "rm *"))
	assert.False(t, c.Lookup("p1", "/proj", "rm *"))
}

func TestApprovalCache_SessionPersistsAcrossLookups(t *testing.T) {
	c := NewApprovalCache("")
	c.Record("p1", "/proj", "rm *", ScopeSession)

	assert.True(t, c.Lookup("p1", "/proj", "rm *"))
	assert.True(t, c.Lookup("p1", "/proj", "rm *"))
}

func TestApprovalCache_Clear(t *testing.T) {
	c := NewApprovalCache("")
	c.Record("p1", "/proj", "rm *", ScopeAlways)
	c.Clear()
	assert.False(t, c.Lookup("p1", "/proj", "rm *"))
}

func TestApprovalCache_DistinctKeysDoNotCollide(t *testing.T) {
	c := NewApprovalCache("")
	c.Record("p1", "/proj", "rm *", ScopeAlways)
	assert.False(t, c.Lookup("p2", "/proj", "rm *"))
	assert.False(t, c.Lookup("p1", "/other", "rm *"))
	assert.False(t, c.Lookup("p1", "/proj", "npm *"))
}

func TestApprovalCache_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "approvals.json")

	c1 := NewApprovalCache(path)
	c1.Record("p1", "/proj", "npm install*", ScopeAlways)

	c2 := NewApprovalCache(path)
	assert.True(t, c2.Lookup("p1", "/proj", "npm install*"))
}

func TestApprovalCache_LoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")
	require.NotPanics(t, func() {
		c := NewApprovalCache(path)
		assert.False(t, c.Lookup("p1", "/proj", "rm *"))
	})
}
