package domain

import (
	"context"
	"io"
)

// ColumnNormalizer maps an arbitrarily shaped table onto the canonical columns
type ColumnNormalizer interface {
	Normalize(table *RawTable) *NormalizedTable
}

// RecordDeriver builds derived records from normalized ones. Derivation never
// fails for a single row: malformed cells yield empty derivations.
type RecordDeriver interface {
	DeriveRecord(rec NormalizedRecord, prefer ModelVariant) DerivedRecord
	DeriveTable(ctx context.Context, table *NormalizedTable, prefer ModelVariant) (*DerivedTable, error)
}

// TableReader parses an upload into a raw table
type TableReader interface {
	Read(r io.Reader) (*RawTable, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetLoggingConfig() *LoggingConfig
	DefaultPreference() ModelVariant
	Reload() error
	Validate() error
	IsProduction() bool
	IsDevelopment() bool
}
