// Taskmesh: hierarchical context MCP server
//
// A multi-tenant task-management context backend exposed over MCP.
// Contexts live in a four-level inheritance tree (global → project →
// branch → task); resolution merges each level with its ancestors and
// caches the result with dependency-signature invalidation.
//
// Usage:
//
//	taskmesh serve     # Start MCP server (stdio transport)
//	taskmesh version   # Print version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/taskmesh/taskmesh/internal/config"
	tmserver "github.com/taskmesh/taskmesh/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("taskmesh v%s\n", tmserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	// Best-effort .env loading; the environment wins over the file.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	s, cleanup, err := tmserver.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Graceful shutdown on interrupt: cancelling the context stops the
	// stdio listener, and the deferred cleanup closes the store.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `taskmesh v%s — hierarchical context MCP server

Usage:
  taskmesh serve     Start the MCP server (stdio transport)
  taskmesh version   Print version

Configuration (environment or .env):
  TASKMESH_DATA_DIR           SQLite data directory (default ~/.taskmesh)
  CACHE_MAX_SIZE              Resolution cache entries (default 1000)
  CACHE_DEFAULT_TTL_SECONDS   Cached resolution lifetime (default 300)
  BOOTSTRAP_AUTO_CREATE       Auto-create missing ancestors (default true)
  LOG_LEVEL                   debug | info | warn | error (default info)

MCP config:

  {
    "mcpServers": {
      "taskmesh": {
        "command": "taskmesh",
        "args": ["serve"]
      }
    }
  }
`, tmserver.Version)
}
