package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestManager_LoadDefaults(t *testing.T) {
	cm := New(zap.NewNop())
	cm.Load()

	assert.Equal(t, DefaultPolicyDir, cm.GetString("SUBSTRATE_POLICY_DIR"))
	assert.Equal(t, DefaultShell, cm.GetString("SUBSTRATE_SHELL"))
	assert.Equal(t, DefaultMetricsPort, cm.GetInt("SUBSTRATE_METRICS_PORT", 0))
}

func TestManager_Set_OverridesDefault(t *testing.T) {
	cm := New(zap.NewNop())
	cm.Load()

	cm.Set("SUBSTRATE_SHELL", "/bin/zsh")
	assert.Equal(t, "/bin/zsh", cm.GetString("SUBSTRATE_SHELL"))
}

func TestManager_GetBool_FallsBackToDefault(t *testing.T) {
	cm := New(zap.NewNop())
	assert.True(t, cm.GetBool("SUBSTRATE_UNSET_FLAG", true))

	cm.Set("SUBSTRATE_UNSET_FLAG", "false")
	assert.False(t, cm.GetBool("SUBSTRATE_UNSET_FLAG", true))
}

func TestManager_GetDuration_FallsBackToDefault(t *testing.T) {
	cm := New(zap.NewNop())
	assert.Equal(t, 5*time.Second, cm.GetDuration("SUBSTRATE_UNSET_DURATION", 5*time.Second))

	cm.Set("SUBSTRATE_UNSET_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, cm.GetDuration("SUBSTRATE_UNSET_DURATION", 5*time.Second))
}

func TestManager_Reload(t *testing.T) {
	cm := New(zap.NewNop())
	cm.Load()
	cm.Set("SUBSTRATE_SHELL", "/bin/fish")

	cm.Reload(zap.NewNop())
	assert.Equal(t, DefaultShell, cm.GetString("SUBSTRATE_SHELL"))
}
