package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/er-ddx-review-server/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.Equal(t, domain.VariantApplied, cfg.Prefer)
	assert.Equal(t, 16, cfg.CacheMaxItems)
	assert.Contains(t, cfg.ExportDir, ".ddx-review")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_FromEnv(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DDX_PREFER", "BASE")
	t.Setenv("DDX_CACHE_MAX_ITEMS", "4")
	t.Setenv("DDX_EXPORT_DIR", "/tmp/ddx-exports")
	t.Setenv("DDX_LOG_LEVEL", "debug")
	t.Setenv("DDX_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, domain.VariantBase, cfg.Prefer)
	assert.Equal(t, 4, cfg.CacheMaxItems)
	assert.Equal(t, "/tmp/ddx-exports", cfg.ExportDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DDX_PREFER", "gpt")
	t.Setenv("DDX_CACHE_MAX_ITEMS", "not-a-number")

	cfg := LoadLiteConfig()

	// Should fall back to defaults
	assert.Equal(t, domain.VariantApplied, cfg.Prefer)
	assert.Equal(t, 16, cfg.CacheMaxItems)

	t.Setenv("DDX_CACHE_MAX_ITEMS", "0")
	assert.Equal(t, 16, LoadLiteConfig().CacheMaxItems)
}

func TestLiteConfig_LoggingConfig(t *testing.T) {
	cfg := &LiteConfig{LogLevel: "warn", LogFormat: "text"}
	lc := cfg.LoggingConfig()

	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "text", lc.Format)
	assert.Equal(t, "stderr", lc.Output)
}

func TestLiteConfig_ExportPath(t *testing.T) {
	cfg := &LiteConfig{ExportDir: "/data/exports"}

	assert.Equal(t, filepath.Join("/data/exports", "evals.csv"), cfg.ExportPath("evals.csv"))
	assert.Equal(t, filepath.Join("/data/exports", "passwd"), cfg.ExportPath("../../etc/passwd"))
}

func TestLiteConfig_EnsureExportDir(t *testing.T) {
	cfg := &LiteConfig{ExportDir: filepath.Join(t.TempDir(), "ddx", "exports")}

	require.NoError(t, cfg.EnsureExportDir())

	info, err := os.Stat(cfg.ExportDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"DDX_PREFER",
		"DDX_CACHE_MAX_ITEMS",
		"DDX_EXPORT_DIR",
		"DDX_LOG_LEVEL",
		"DDX_LOG_FORMAT",
	}
	for _, v := range vars {
		// t.Setenv restores the previous value after the test
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
