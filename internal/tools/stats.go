package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

// StatsTool handles the ctx_stats MCP tool.
type StatsTool struct {
	service *hierarchy.Service
}

// NewStatsTool creates a StatsTool with its dependencies.
func NewStatsTool(service *hierarchy.Service) *StatsTool {
	return &StatsTool{service: service}
}

// Definition returns the MCP tool definition for registration.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("ctx_stats",
		mcp.WithDescription(
			"Report resolution cache statistics: hits, misses, evictions, expirations, "+
				"current size, and the number of entries in the dependency index.",
		),
	)
}

// Handle processes the ctx_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.service.CacheStats()), nil
}
