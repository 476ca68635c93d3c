// Package main provides the stdio MCP entry point of the ER DDX review server.
// It requires no external services: datasets and evaluations live in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/er-ddx-review-server/internal/config"
	"github.com/er-ddx-review-server/internal/mcp"
	"github.com/er-ddx-review-server/internal/setup"
)

func main() {
	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)

	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdout)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	// Load lightweight configuration
	cfg := config.LoadLiteConfig()

	log.Printf("Starting ER DDX review MCP server (lite), prefer=%s", cfg.Prefer)
	log.Printf("Export directory: %s", cfg.ExportDir)

	// Create lite MCP server
	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start MCP server
	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("ER DDX review MCP server (lite) stopped")
}
