package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalInt extracts an optional integer argument from the request.
// JSON numbers arrive as float64, so the value is truncated toward zero.
func getOptionalInt(req mcp.CallToolRequest, key string) (int, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	if !ok {
		return 0, false
	}
	return int(val), true
}

// getOptionalStringSlice extracts an optional array-of-strings argument from
// the request. A present value with a non-string element is an error so the
// caller can report the bad input rather than silently dropping it.
func getOptionalStringSlice(req mcp.CallToolRequest, key string) ([]string, error) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, nil
	}
	raw, exists := args[key]
	if !exists || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be an array of strings", key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %q must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// getOptionalMap extracts an optional object argument from the request.
func getOptionalMap(req mcp.CallToolRequest, key string) (map[string]any, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok := args[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return val, true
}

// capRows truncates a result set to the row cap and reports whether rows
// were actually dropped. A cap of zero or less means unbounded.
func capRows(rows []map[string]any, limit int) ([]map[string]any, bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}

// newJSONResult marshals a response payload into a text tool result.
func newJSONResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
