package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

// ResolveTool handles the ctx_resolve MCP tool.
type ResolveTool struct {
	service *hierarchy.Service
}

// NewResolveTool creates a ResolveTool with its dependencies.
func NewResolveTool(service *hierarchy.Service) *ResolveTool {
	return &ResolveTool{service: service}
}

// Definition returns the MCP tool definition for registration.
func (t *ResolveTool) Definition() mcp.Tool {
	return mcp.NewTool("ctx_resolve",
		mcp.WithDescription(
			"Resolve the effective configuration of a context. By default the result is "+
				"the deep merge of the context with all its ancestors (global → project → "+
				"branch → task), with the more specific level winning on conflicts. "+
				"Served from cache when a fresh, still-valid resolution exists.",
		),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("Hierarchy level: 'global', 'project', 'branch', or 'task'"),
			mcp.Enum("global", "project", "branch", "task"),
		),
		mcp.WithString("context_id",
			mcp.Description("Context identifier. Optional for 'global' (fixed singleton id)."),
		),
		mcp.WithString("owner_id",
			mcp.Required(),
			mcp.Description("Tenant/user the context belongs to. Resolution never crosses owners."),
		),
		mcp.WithBoolean("include_inherited",
			mcp.Description("Merge ancestor data into the result (default true). "+
				"Set false for a cheap read of the context's own data only."),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Bypass the cache and re-resolve unconditionally (default false)."),
		),
	)
}

// Handle processes the ctx_resolve tool call.
func (t *ResolveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := req.GetString("level", "")
	contextID := req.GetString("context_id", "")
	ownerID := req.GetString("owner_id", "")
	includeInherited := req.GetBool("include_inherited", true)
	forceRefresh := req.GetBool("force_refresh", false)

	result := t.service.ResolveContext(level, contextID, ownerID, includeInherited, forceRefresh)
	return jsonResult(result), nil
}
