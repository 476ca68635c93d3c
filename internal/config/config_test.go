package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/er-ddx-review-server/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestManager_Defaults(t *testing.T) {
	m, err := NewManagerFromFile(writeConfig(t, "environment: development\n"))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(64<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 16, cfg.Cache.MaxItems)
	assert.Equal(t, domain.VariantApplied, m.DefaultPreference())
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}

func TestManager_FileValues(t *testing.T) {
	m, err := NewManagerFromFile(writeConfig(t, `
environment: production
server:
  port: 9090
  read_timeout: 5s
derivation:
  prefer: base
logging:
  level: debug
  format: text
`))
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, 5*time.Second, m.GetServerConfig().ReadTimeout)
	assert.Equal(t, domain.VariantBase, m.DefaultPreference())
	assert.Equal(t, "text", m.GetLoggingConfig().Format)
	assert.True(t, m.IsProduction())
}

func TestManager_EnvOverride(t *testing.T) {
	t.Setenv("DDX_REVIEW_SERVER_PORT", "7070")
	t.Setenv("DDX_REVIEW_DERIVATION_PREFER", "base")

	m, err := NewManagerFromFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, m.GetServerConfig().Port)
	assert.Equal(t, domain.VariantBase, m.DefaultPreference())
}

func TestManager_Reload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	m, err := NewManagerFromFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0o600))
	require.NoError(t, m.Reload())
	assert.Equal(t, 9191, m.GetServerConfig().Port)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"zero upload size", "upload:\n  max_bytes: 0\n"},
		{"negative burst", "upload:\n  burst: -1\n"},
		{"unknown variant", "derivation:\n  prefer: gpt\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManagerFromFile(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Error(t, m.Validate())
		})
	}
}

func TestManager_MissingExplicitFile(t *testing.T) {
	_, err := NewManagerFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)

	logger, err = NewLogger(domain.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)

	_, err = NewLogger(domain.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(domain.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
	_, err = NewLogger(domain.LoggingConfig{Level: "info", Output: "syslog"})
	assert.Error(t, err)
}
