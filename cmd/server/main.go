package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/er-ddx-review-server/internal/api"
	"github.com/er-ddx-review-server/internal/cache"
	"github.com/er-ddx-review-server/internal/config"
	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/internal/service"
	"github.com/er-ddx-review-server/internal/session"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	datasetCache, err := cache.NewDatasetCache(cfg.Cache.MaxItems)
	if err != nil {
		log.Fatalf("Failed to create dataset cache: %v", err)
	}
	datasets, err := service.NewDatasetService(logger, datasetCache)
	if err != nil {
		log.Fatalf("Failed to create dataset service: %v", err)
	}

	store, err := ledger.NewSQLiteStore(cfg.Ledger.Name)
	if err != nil {
		log.Fatalf("Failed to create evaluation ledger: %v", err)
	}
	defer store.Close()

	logger.WithField("addr", cfg.Server.Host).WithField("port", cfg.Server.Port).Info("Starting ER DDX review server")

	// Create server
	server := api.NewServer(configManager, logger, datasets, store, session.NewState())

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
