// Package mcp exposes the review services as an MCP server over stdio. It
// needs no external services: datasets live in memory and evaluations in an
// in-memory SQLite ledger.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/er-ddx-review-server/internal/cache"
	litecfg "github.com/er-ddx-review-server/internal/config"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/service"
)

// ServerName and ServerVersion identify the server to MCP clients
const (
	ServerName    = "er-ddx-review-lite"
	ServerVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	datasets  *service.DatasetService
	store     ledger.Store
	logger    *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithLedger sets a custom evaluation ledger.
func WithLedger(store ledger.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.store = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{config: cfg}

	// Apply options
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.logger == nil {
		logger, err := litecfg.NewLogger(cfg.LoggingConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		server.logger = logger
	}

	datasetCache, err := cache.NewDatasetCache(cfg.CacheMaxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset cache: %w", err)
	}
	datasets, err := service.NewDatasetService(server.logger, datasetCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset service: %w", err)
	}
	server.datasets = datasets

	// Initialize ledger if not provided
	if server.store == nil {
		store, err := ledger.NewSQLiteStore("")
		if err != nil {
			return nil, fmt.Errorf("failed to create ledger: %w", err)
		}
		server.store = store
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	newToolSet(server).register(server.mcpServer)

	server.logger.Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting ER DDX review MCP server (lite)...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close ledger")
			return err
		}
	}
	return nil
}

// Ledger returns the evaluation ledger for external access.
func (s *LiteServer) Ledger() ledger.Store {
	return s.store
}

// Datasets returns the dataset service for external access.
func (s *LiteServer) Datasets() *service.DatasetService {
	return s.datasets
}
