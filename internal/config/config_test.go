package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	data := cfg.GetBrowserData()
	assert.Equal(t, DefaultBrowserPort, data.BindPort)
	assert.Equal(t, MergePriorityHigh, data.MergePriority)
	assert.Equal(t, DefaultRefreshIntervalSec, data.RefreshIntervalSec)

	_, err = os.Stat(filepath.Join(dir, DefaultConfigFile))
	assert.NoError(t, err)
}

func TestLoadOverlaysDefaultsOnPartialFile(t *testing.T) {
	dir := t.TempDir()
	partial := `{"browser_data": {"udp_bind_port": 28000}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(partial), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	data := cfg.GetBrowserData()
	assert.Equal(t, 28000, data.BindPort)
	// Unspecified fields fall back to defaults.
	assert.Equal(t, MergePriorityHigh, data.MergePriority)
	assert.Equal(t, DefaultRefreshIntervalSec, data.RefreshIntervalSec)
}

func TestUpdateBrowserField(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.UpdateBrowserField("merge_priority", "low"))
	assert.Equal(t, MergePriorityLow, cfg.GetBrowserData().MergePriority)

	require.NoError(t, cfg.UpdateBrowserField("max_connections_per_ip", 9))
	assert.Equal(t, 9, cfg.GetBrowserData().MaxConnectionsPerIP)
}

func TestUpdateBrowserFieldUnknownKey(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.UpdateBrowserField("no_such_field", "x"))
}

func TestValidateDefaults(t *testing.T) {
	result := Validate(DefaultConfig())
	assert.True(t, result.IsValid(), "default config must validate: %v", result.Errors)
}

func TestValidateRejectsBadMergeMode(t *testing.T) {
	cfg := DefaultConfig()
	data := cfg.GetBrowserData()
	data.MergePriority = "best"
	cfg.SetBrowserData(data)

	result := Validate(cfg)
	assert.False(t, result.IsValid())
}

func TestValidateRejectsZeroCaps(t *testing.T) {
	cfg := DefaultConfig()
	data := cfg.GetBrowserData()
	data.MaxConnectionsPerIP = 0
	data.MaxTrackedConnections = 0
	cfg.SetBrowserData(data)

	result := Validate(cfg)
	assert.Len(t, result.Errors, 2)
}
