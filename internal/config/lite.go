// Package config provides configuration management for the review server.
// This file contains the lightweight configuration for the stdio MCP server.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/er-ddx-review-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It is read from the environment only and needs no config file.
type LiteConfig struct {
	// Derivation
	Prefer domain.ModelVariant // Default variant of the preferred view

	// Cache settings
	CacheMaxItems int // Maximum derived tables kept in memory

	// Exports
	ExportDir string // Directory export tools write into

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		Prefer:        domain.VariantApplied,
		CacheMaxItems: 16,
		ExportDir:     filepath.Join(homeDir, ".ddx-review", "exports"),
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set or invalid.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("DDX_PREFER"); v != "" {
		if p, err := domain.ParseModelVariant(v); err == nil {
			cfg.Prefer = p
		}
	}

	// Cache settings
	if v := os.Getenv("DDX_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}

	if v := os.Getenv("DDX_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}

	// Logging
	if v := os.Getenv("DDX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DDX_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// LoggingConfig returns the logging settings; the stdio transport owns
// stdout, so logs always go to stderr.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		Output: "stderr",
	}
}

// ExportPath returns the path of an export file inside ExportDir. Only the
// base name of name is used.
func (c *LiteConfig) ExportPath(name string) string {
	return filepath.Join(c.ExportDir, filepath.Base(name))
}

// EnsureExportDir creates the export directory if it doesn't exist.
func (c *LiteConfig) EnsureExportDir() error {
	return os.MkdirAll(c.ExportDir, 0755)
}
