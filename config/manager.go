/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Manager centralizes access to runtime configuration. Priority order is:
// flags (applied by cmd/) > environment variables > .env file > defaults.
type Manager struct {
	mu     sync.RWMutex
	values map[string]interface{}
	logger *zap.Logger
}

// Global is the process-wide Manager instance.
var Global *Manager

// New creates a Manager.
func New(logger *zap.Logger) *Manager {
	return &Manager{
		values: make(map[string]interface{}),
		logger: logger,
	}
}

// Load populates configuration from all sources.
func (cm *Manager) Load() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.loadDefaults()
	cm.loadEnvFile()
	cm.loadEnvVars()
}

// Reload re-reads the .env file and environment variables, discarding any
// previously loaded values first.
func (cm *Manager) Reload(logger *zap.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.logger = logger
	cm.values = make(map[string]interface{})
	cm.loadDefaults()
	cm.loadEnvFile()
	cm.loadEnvVars()
	cm.logger.Info("configuration reloaded")
}

func (cm *Manager) loadDefaults() {
	cm.values["SUBSTRATE_POLICY_DIR"] = DefaultPolicyDir
	cm.values["SUBSTRATE_TRACE_LOG"] = DefaultTraceLogPath
	cm.values["SUBSTRATE_TRACE_LOG_MAX_SIZE"] = DefaultTraceLogMaxSize
	cm.values["SUBSTRATE_SHIM_DIR"] = DefaultShimDir
	cm.values["SUBSTRATE_SHELL"] = DefaultShell
	cm.values["SUBSTRATE_METRICS_PORT"] = strconv.Itoa(DefaultMetricsPort)
	cm.values["SUBSTRATE_WORLD_BACKEND"] = DefaultWorldBackend
	cm.values["SUBSTRATE_APPROVAL_CACHE"] = DefaultApprovalCachePath
}

// loadEnvFile loads configuration from a .env file in the current
// directory. Existing environment variables are not overridden.
func (cm *Manager) loadEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		cm.logger.Debug(".env file not found or unreadable", zap.Error(err))
		return
	}
	for key, value := range envMap {
		cm.values[key] = value
	}
}

// loadEnvVars loads configuration from the system environment, which takes
// priority over .env and defaults.
func (cm *Manager) loadEnvVars() {
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			cm.values[pair[0]] = pair[1]
		}
	}
}

// Set injects a value, typically from a CLI flag (highest priority).
func (cm *Manager) Set(key string, value interface{}) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.values[key] = value
}

// GetString returns a configuration value as a string.
func (cm *Manager) GetString(key string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if val, ok := cm.values[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}

// GetInt returns a configuration value as an int.
func (cm *Manager) GetInt(key string, defaultValue int) int {
	valStr := cm.GetString(key)
	if valStr == "" {
		return defaultValue
	}
	if intVal, err := strconv.Atoi(valStr); err == nil {
		return intVal
	}
	return defaultValue
}

// GetBool returns a configuration value as a bool.
func (cm *Manager) GetBool(key string, defaultValue bool) bool {
	valStr := cm.GetString(key)
	if valStr == "" {
		return defaultValue
	}
	if boolVal, err := strconv.ParseBool(valStr); err == nil {
		return boolVal
	}
	return defaultValue
}

// GetDuration returns a configuration value as a time.Duration.
func (cm *Manager) GetDuration(key string, defaultValue time.Duration) time.Duration {
	valStr := cm.GetString(key)
	if valStr == "" {
		return defaultValue
	}
	if durVal, err := time.ParseDuration(valStr); err == nil {
		return durVal
	}
	return defaultValue
}
