package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Upload      UploadConfig     `mapstructure:"upload"`
	Derivation  DerivationConfig `mapstructure:"derivation"`
	Ledger      LedgerConfig     `mapstructure:"ledger"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// UploadConfig bounds the upload endpoint
type UploadConfig struct {
	MaxBytes  int64   `mapstructure:"max_bytes"`
	RateLimit float64 `mapstructure:"rate_limit"` // uploads per second
	Burst     int     `mapstructure:"burst"`
}

// DerivationConfig holds the defaults of the derivation pass
type DerivationConfig struct {
	Prefer string `mapstructure:"prefer"` // "applied" or "base"
}

// LedgerConfig configures the in-memory evaluation ledger
type LedgerConfig struct {
	Name string `mapstructure:"name"` // shared-cache name of the in-memory database
}

// CacheConfig represents derived-dataset cache configuration
type CacheConfig struct {
	MaxItems int `mapstructure:"max_items"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
