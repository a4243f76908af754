package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"callbroker/internal/tool"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolCaller is the part of Client a RemoteTool needs.
type toolCaller interface {
	Name() string
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.CallToolResult, error)
}

// RemoteTool exposes one MCP server tool as a tool.Tool named
// <server>_<tool>.
type RemoteTool struct {
	caller   toolCaller
	mcpTool  *mcp.Tool
	name     string
	schema   map[string]any
	resolved *jsonschema.Resolved // nil when the server's schema cannot be resolved
}

// NewRemoteTool creates an adapter for an MCP tool
func NewRemoteTool(caller toolCaller, mcpTool *mcp.Tool) *RemoteTool {
	schema := inputSchema(mcpTool.InputSchema)
	return &RemoteTool{
		caller:   caller,
		mcpTool:  mcpTool,
		name:     fmt.Sprintf("%s_%s", caller.Name(), mcpTool.Name),
		schema:   schema,
		resolved: resolveSchema(schema),
	}
}

func (a *RemoteTool) Name() string {
	return a.name
}

func (a *RemoteTool) Description() string {
	desc := a.mcpTool.Description
	if desc == "" {
		desc = fmt.Sprintf("MCP tool from %s server", a.caller.Name())
	}
	return fmt.Sprintf("%s\n\n[MCP Server: %s]", desc, a.caller.Name())
}

func (a *RemoteTool) Parameters() map[string]any {
	return a.schema
}

func (a *RemoteTool) OutputSchema() map[string]any {
	if a.mcpTool.OutputSchema == nil {
		return nil
	}
	m, err := toMap(a.mcpTool.OutputSchema)
	if err != nil {
		return nil
	}
	return m
}

// Validate checks that the arguments form a JSON object and, when the
// server published a usable schema, that they satisfy it.
func (a *RemoteTool) Validate(params json.RawMessage) error {
	_, err := a.arguments(params)
	return err
}

// Execute calls the MCP server. A result flagged IsError is returned as an
// error carrying the server's message.
func (a *RemoteTool) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	args, err := a.arguments(params)
	if err != nil {
		return nil, tool.DecodeError(err)
	}

	result, err := a.caller.CallTool(ctx, a.mcpTool.Name, args)
	if err != nil {
		return nil, fmt.Errorf("MCP tool execution failed: %w", err)
	}
	if result.IsError {
		return nil, errors.New(formatMCPError(result))
	}

	data := map[string]any{
		"mcp_server": a.caller.Name(),
		"mcp_tool":   a.mcpTool.Name,
	}
	if result.StructuredContent != nil {
		data["structured"] = result.StructuredContent
	}

	return &tool.Result{
		Output: formatMCPContent(result.Content),
		Data:   data,
	}, nil
}

func (a *RemoteTool) arguments(params json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}

	var args map[string]any
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	if a.resolved != nil {
		if err := a.resolved.Validate(args); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// inputSchema normalizes the SDK's untyped schema to a map.
func inputSchema(schema any) map[string]any {
	if schema == nil {
		return emptyObjectSchema()
	}
	m, err := toMap(schema)
	if err != nil || m == nil {
		return emptyObjectSchema()
	}
	return m
}

func toMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func resolveSchema(schema map[string]any) *jsonschema.Resolved {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil
	}
	return resolved
}

// formatMCPContent converts MCP content array to string
func formatMCPContent(content []mcp.Content) string {
	var parts []string

	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))
		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
			} else {
				parts = append(parts, string(data))
			}
		}
	}

	return strings.Join(parts, "\n")
}

// formatMCPError extracts error message from MCP result
func formatMCPError(result *mcp.CallToolResult) string {
	if len(result.Content) > 0 {
		return formatMCPContent(result.Content)
	}
	return "MCP tool returned an error"
}
