package tools

import (
	"context"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskmesh/taskmesh/internal/hierarchy"
)

// WriteTool handles the ctx_write MCP tool.
type WriteTool struct {
	service           *hierarchy.Service
	defaultAutoCreate bool
}

// NewWriteTool creates a WriteTool. defaultAutoCreate is the
// BOOTSTRAP_AUTO_CREATE setting applied when the caller omits
// auto_create_parents.
func NewWriteTool(service *hierarchy.Service, defaultAutoCreate bool) *WriteTool {
	return &WriteTool{service: service, defaultAutoCreate: defaultAutoCreate}
}

// Definition returns the MCP tool definition for registration.
func (t *WriteTool) Definition() mcp.Tool {
	return mcp.NewTool("ctx_write",
		mcp.WithDescription(
			"Create or update a context at a hierarchy level. Missing ancestor contexts "+
				"are materialized automatically (a task write creates its branch and project "+
				"contexts when absent), idempotently — writing twice never duplicates "+
				"ancestors. Relationship fields: branch contexts need 'project_id', task "+
				"contexts need 'branch_id' (aliases: 'parent_branch_id', 'git_branch_id') "+
				"in data, unless the parent is already known.",
		),
		mcp.WithString("level",
			mcp.Required(),
			mcp.Description("Hierarchy level: 'global', 'project', 'branch', or 'task'"),
			mcp.Enum("global", "project", "branch", "task"),
		),
		mcp.WithString("context_id",
			mcp.Description("Context identifier. Generated (UUID) when omitted for non-global levels."),
		),
		mcp.WithString("owner_id",
			mcp.Required(),
			mcp.Description("Tenant/user the context belongs to."),
		),
		mcp.WithObject("data",
			mcp.Description("Context data as a JSON object. Replaces the stored data wholesale; "+
				"underscore-prefixed keys are kept under the '_ext' extension map."),
		),
		mcp.WithBoolean("auto_create_parents",
			mcp.Description("Materialize missing ancestor contexts before writing "+
				"(default per server configuration, normally true)."),
		),
	)
}

// Handle processes the ctx_write tool call.
func (t *WriteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level := req.GetString("level", "")
	contextID := req.GetString("context_id", "")
	ownerID := req.GetString("owner_id", "")
	autoCreate := req.GetBool("auto_create_parents", t.defaultAutoCreate)

	data, err := dataArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if contextID == "" && level != string(hierarchy.LevelGlobal) {
		contextID = uuid.NewString()
	}

	result := t.service.WriteContext(level, contextID, ownerID, data, autoCreate)
	return jsonResult(result), nil
}
