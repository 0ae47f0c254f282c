package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultGlobalConfig(t *testing.T) {
	cfg := NewDefaultGlobalConfig()

	assert.Equal(t, 9000, cfg.ProbeConfig.TotalBudgetMs)
	assert.Equal(t, 100, cfg.ProbeConfig.MinRemainingMs)
	assert.Equal(t, 10, cfg.ProbeConfig.MaxRedirects)
	assert.Equal(t, 50, cfg.StorageConfig.RingSize)
	assert.Equal(t, 5, cfg.StorageConfig.StaleAfterMins)
	assert.Equal(t, 10, cfg.StorageConfig.HistoryLimit)
	assert.Equal(t, 3, cfg.WorkflowConfig.LLMMaxAttempts)
	assert.Equal(t, []string{"*"}, cfg.ServerConfig.AllowedOrigins)
}

func TestLoadGlobalConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadGlobalConfig("", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.ProbeConfig.TotalBudgetMs)
}

func TestLoadGlobalConfig_YAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
probe_config:
  total_budget_ms: 5000
  max_redirects: 5
storage_config:
  ring_size: 20
log_config:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadGlobalConfig(path, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.ProbeConfig.TotalBudgetMs)
	assert.Equal(t, 5, cfg.ProbeConfig.MaxRedirects)
	assert.Equal(t, 20, cfg.StorageConfig.RingSize)
	assert.Equal(t, "debug", cfg.LogConfig.LogLevel)
	// Untouched sections keep defaults.
	assert.Equal(t, 5, cfg.StorageConfig.StaleAfterMins)
}

func TestLoadGlobalConfig_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
probe_config:
  total_budget_ms: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadGlobalConfig(path, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadGlobalConfig_BudgetHeadroom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
probe_config:
  total_budget_ms: 200
  min_remaining_ms: 300
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := LoadGlobalConfig(path, zerolog.Nop())
	assert.ErrorContains(t, err, "min_remaining_ms")
}

func TestGetConfigPath_FlagWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	assert.Equal(t, path, GetConfigPath(path))
}

func TestGetConfigPath_MissingFlagFileIgnored(t *testing.T) {
	got := GetConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
	// Falls through to defaults; result depends on cwd contents, but
	// must not be the missing flag path.
	assert.NotContains(t, got, "absent.yaml")
}
