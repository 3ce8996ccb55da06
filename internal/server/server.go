// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root: it creates concrete implementations —
// the SQLite store, the resolution cache, the resolver/manager/
// propagator chain — and injects them into the tools that depend on
// abstractions. No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/taskmesh/taskmesh/internal/config"
	"github.com/taskmesh/taskmesh/internal/hierarchy"
	"github.com/taskmesh/taskmesh/internal/storage"
	"github.com/taskmesh/taskmesh/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools registered.
//
// The returned cleanup function closes the store's database connection
// and must be called on shutdown (typically via defer). It is always
// non-nil and safe to call.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	// Logs go to stderr: stdout belongs to the MCP stdio transport.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	store, err := storage.New(storage.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("creating context store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("context store close", "error", err)
		}
	}

	service, err := newService(cfg, store, log)
	if err != nil {
		cleanup()
		return nil, noop, err
	}

	s := server.NewMCPServer(
		"taskmesh",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	resolveTool := tools.NewResolveTool(service)
	s.AddTool(resolveTool.Definition(), resolveTool.Handle)

	writeTool := tools.NewWriteTool(service, cfg.BootstrapAutoCreate)
	s.AddTool(writeTool.Definition(), writeTool.Handle)

	deleteTool := tools.NewDeleteTool(service)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	statsTool := tools.NewStatsTool(service)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	return s, cleanup, nil
}

// newService assembles the hierarchy facade over a store. With
// BOOTSTRAP_AUTO_CREATE off the resolver gets no guard, so a read can
// never materialize ancestor records; only writes that explicitly ask
// for auto-creation may still do so.
func newService(cfg config.Config, store *storage.Store, log *slog.Logger) (*hierarchy.Service, error) {
	resCache, err := hierarchy.NewResolutionCache(cfg.CacheMaxSize)
	if err != nil {
		return nil, fmt.Errorf("creating resolution cache: %w", err)
	}

	guard := hierarchy.NewGuard(store, store)
	var readGuard *hierarchy.Guard
	if cfg.BootstrapAutoCreate {
		readGuard = guard
	}
	resolver := hierarchy.NewResolver(store, readGuard)
	manager := hierarchy.NewManager(store, resolver, resCache, cfg.CacheTTL, log)
	propagator := hierarchy.NewPropagator(resCache, log)

	service := hierarchy.NewService(store, manager, propagator, guard, log)
	service.SetAssociationRecorder(store)
	return service, nil
}

// noop is a no-op cleanup function used when initialization fails.
func noop() {}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func serverInstructions() string {
	return `taskmesh manages hierarchical task contexts: global → project → branch → task.
Each context inherits configuration from its ancestors; more specific levels
override less specific ones.

Tools:
- ctx_resolve: read a context's effective (inheritance-merged) configuration
- ctx_write: create or update a context (missing ancestors are auto-created)
- ctx_delete: delete a context record
- ctx_stats: resolution cache statistics

Every call is scoped by owner_id; contexts of different owners are invisible
to each other.`
}
