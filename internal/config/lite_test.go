package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var liteEnvVars = []string{
	"HEALTH_KEEPER_DATA_DIR",
	"HEALTH_KEEPER_CACHE_MAX_ITEMS",
	"HEALTH_KEEPER_CACHE_TTL",
	"HEALTH_KEEPER_LOOKBACK_DAYS",
	"HEALTH_KEEPER_TEXTSOURCE_URL",
	"HEALTH_KEEPER_TEXTSOURCE_API_KEY",
	"HEALTH_KEEPER_LOG_LEVEL",
	"HEALTH_KEEPER_LOG_FORMAT",
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, v := range liteEnvVars {
		if old, ok := os.LookupEnv(v); ok {
			os.Unsetenv(v)
			t.Cleanup(func() { os.Setenv(v, old) })
		}
	}
	t.Cleanup(func() {
		for _, v := range liteEnvVars {
			os.Unsetenv(v)
		}
	})
}

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.Contains(t, cfg.DataDir, ".health-keeper-mcp")
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 90, cfg.LookbackDays)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.TextSourceURL)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadLiteConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 90*24*time.Hour, cfg.LookbackWindow())
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("HEALTH_KEEPER_DATA_DIR", "/tmp/test-health-keeper")
	t.Setenv("HEALTH_KEEPER_CACHE_MAX_ITEMS", "500")
	t.Setenv("HEALTH_KEEPER_CACHE_TTL", "12h")
	t.Setenv("HEALTH_KEEPER_LOOKBACK_DAYS", "30")
	t.Setenv("HEALTH_KEEPER_TEXTSOURCE_URL", "http://ocr.local")
	t.Setenv("HEALTH_KEEPER_LOG_LEVEL", "debug")

	cfg, err := LoadLiteConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-health-keeper", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30, cfg.LookbackDays)
	assert.Equal(t, "http://ocr.local", cfg.TextSourceURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_InvalidValuesKeepDefaults(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("HEALTH_KEEPER_CACHE_MAX_ITEMS", "-5")
	t.Setenv("HEALTH_KEEPER_CACHE_TTL", "soon")
	t.Setenv("HEALTH_KEEPER_LOOKBACK_DAYS", "zero")

	cfg, err := LoadLiteConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 90, cfg.LookbackDays)
}

func TestLoadLiteConfig_DotEnv(t *testing.T) {
	clearEnvVars(t)

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HEALTH_KEEPER_LOOKBACK_DAYS=45\nHEALTH_KEEPER_LOG_FORMAT=text\n"), 0600))

	// Values already in the environment are not overridden by the file.
	t.Setenv("HEALTH_KEEPER_LOG_FORMAT", "json")

	cfg, err := LoadLiteConfig(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.LookbackDays)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.health-keeper-mcp"}

	assert.Equal(t, "/home/user/.health-keeper-mcp/reviews.db", cfg.ReviewDBPath())
	assert.Equal(t, "/home/user/.health-keeper-mcp/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "health")}

	require.NoError(t, cfg.EnsureDataDir())

	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}
