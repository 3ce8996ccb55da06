package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

// DeleteTool handles the ctx_delete MCP tool.
type DeleteTool struct {
	service *hierarchy.Service
}

// NewDeleteTool creates a DeleteTool with its dependencies.
func NewDeleteTool(service *hierarchy.Service) *DeleteTool {
	return &DeleteTool{service: service}
}

// Definition returns the MCP tool definition for registration.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("ctx_delete",
		mcp.WithDescription(
			"Delete a context record. Cached resolutions of the context and of every "+
				"cached descendant are invalidated; descendant records themselves are NOT "+
				"deleted — remove them explicitly if needed.",
		),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("Hierarchy level: 'global', 'project', 'branch', or 'task'"),
			mcp.Enum("global", "project", "branch", "task"),
		),
		mcp.WithString("context_id",
			mcp.Description("Context identifier. Optional for 'global'."),
		),
		mcp.WithString("owner_id",
			mcp.Required(),
			mcp.Description("Tenant/user the context belongs to."),
		),
	)
}

// Handle processes the ctx_delete tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := req.GetString("level", "")
	contextID := req.GetString("context_id", "")
	ownerID := req.GetString("owner_id", "")

	result := t.service.DeleteContext(level, contextID, ownerID)
	return jsonResult(result), nil
}
