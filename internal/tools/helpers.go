// Package tools implements the MCP tool handlers for the context
// hierarchy engine.
//
// Each tool is a struct that receives its dependencies at construction
// and exposes a Definition for registration plus a Handle compatible
// with mcp-go's CallToolRequest signature. Tool results carry the
// engine's structured payloads as JSON text; domain failures come back
// as success:false payloads, never as transport errors.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// dataArg extracts the "data" argument as a JSON object. It accepts
// either a real object or a JSON-encoded string (some MCP clients only
// send strings). A missing argument yields an empty map.
func dataArg(req mcp.CallToolRequest) (map[string]any, error) {
	raw, ok := req.GetArguments()["data"]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}

	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		data := map[string]any{}
		if err := json.Unmarshal([]byte(v), &data); err != nil {
			return nil, fmt.Errorf("'data' is not valid JSON: %v", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("'data' must be a JSON object")
}

// jsonResult marshals a structured payload into a text tool result.
func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(string(out))
}
