/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_RequiresIDAndName(t *testing.T) {
	p := &Policy{}
	err := p.Validate()
	assert.ErrorContains(t, err, "id")

	p = &Policy{ID: "p1"}
	err = p.Validate()
	assert.ErrorContains(t, err, "name")
}

func TestValidate_DefaultsModeToObserve(t *testing.T) {
	p := &Policy{ID: "p1", Name: "default"}
	assert.NoError(t, p.Validate())
	assert.Equal(t, ModeObserve, p.Mode)
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	p := &Policy{ID: "p1", Name: "default", Mode: "yolo"}
	assert.Error(t, p.Validate())
}

func TestValidate_AcceptsEnforceMode(t *testing.T) {
	p := &Policy{ID: "p1", Name: "default", Mode: ModeEnforce}
	assert.NoError(t, p.Validate())
}
