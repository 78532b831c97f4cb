package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.Telemetry)
	assert.False(t, cfg.SuccessCriteria)
	assert.False(t, cfg.Feedback)
	assert.False(t, cfg.MinimalMode)
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.SuccessCriteria = true
	cfg.TimeTracking = true
	require.NoError(t, SaveConfig(dir, cfg))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, loaded.SuccessCriteria)
	assert.True(t, loaded.TimeTracking)
	assert.True(t, loaded.Telemetry)
	assert.False(t, loaded.Deadlines)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("success_criteria: [not a bool"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestEffectiveMinimalModeOverridesAll(t *testing.T) {
	cfg := Config{
		SuccessCriteria:     true,
		Feedback:            true,
		Telemetry:           true,
		CompletionSummaries: true,
		TimeTracking:        true,
		Deadlines:           true,
		MinimalMode:         true,
	}

	eff := cfg.Effective()
	assert.True(t, eff.MinimalMode)
	assert.False(t, eff.SuccessCriteria)
	assert.False(t, eff.Feedback)
	assert.False(t, eff.Telemetry)
	assert.False(t, eff.CompletionSummaries)
	assert.False(t, eff.TimeTracking)
	assert.False(t, eff.Deadlines)
}

func TestConfigSetUnknownFeature(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Set("does_not_exist", true))
	assert.True(t, cfg.Set("feedback", true))
	assert.True(t, cfg.Feedback)
}

func TestGetDBPathEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvDBPath, filepath.Join(dir, "nested", "tasks.db"))

	path, err := GetDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "tasks.db"), path)

	// Parent directory is created as a side effect.
	info, err := os.Stat(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStateDirUsesOverride(t *testing.T) {
	dir := t.TempDir()
	SetStateDirOverride(dir)
	t.Cleanup(func() { SetStateDirOverride("") })

	got, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, StateDirName), got)
}
