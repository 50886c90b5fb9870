package runconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigOverlaysFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nmax_concurrency: 8\nstore:\n  backend: sqlite\n  sqlite_path: .conductor-run/store.db\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigAppliesEnvOverrideOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))

	t.Setenv("CONDUCTOR_RUN_LOG_LEVEL", "error")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestValidateRejectsInvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsSQLiteBackendWithoutPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsRepairEnabledWithZeroAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repair.Enabled = true
	cfg.Repair.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}
