package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/kestrelrun/agentkernel/kernel/tool"
)

func bridgeID(serverName, toolName string) string {
	return fmt.Sprintf("mcp_%s_%s", serverName, toolName)
}

// ToolBridge exposes one MCP server tool as a tool.Tool, projecting its
// JSON Schema inputSchema into []tool.ParameterSchema and translating
// Execute into a tools/call round trip.
type ToolBridge struct {
	client *Client
	info   ToolInfo
}

func NewToolBridge(client *Client, info ToolInfo) *ToolBridge {
	return &ToolBridge{client: client, info: info}
}

func (b *ToolBridge) ID() string          { return bridgeID(b.client.Name, b.info.Name) }
func (b *ToolBridge) Description() string { return b.info.Description }

func (b *ToolBridge) Parameters() []tool.ParameterSchema {
	return projectInputSchema(b.info.InputSchema)
}

func (b *ToolBridge) Execute(ctx context.Context, args map[string]any, ec tool.ExecContext) (tool.Result, error) {
	text, isError, err := b.client.CallTool(ctx, b.info.Name, args)
	if err != nil {
		return tool.Result{}, fmt.Errorf("mcp: call %s: %w", b.ID(), err)
	}
	return tool.Result{Content: text, IsError: isError}, nil
}

// projectInputSchema converts a JSON Schema object (properties/required)
// into the flat parameter list the rest of the kernel works with. Only
// the subset of JSON Schema that MCP tool schemas actually use is
// modeled: type, description, enum, default.
func projectInputSchema(schema map[string]any) []tool.ParameterSchema {
	if schema == nil {
		return nil
	}
	props, _ := schema["properties"].(map[string]any)
	if props == nil {
		return nil
	}
	required := map[string]bool{}
	if reqList, ok := schema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]tool.ParameterSchema, 0, len(names))
	for _, name := range names {
		propAny, _ := props[name].(map[string]any)
		ps := tool.ParameterSchema{
			Name:     name,
			Type:     jsonSchemaType(propAny["type"]),
			Required: required[name],
		}
		if desc, ok := propAny["description"].(string); ok {
			ps.Description = desc
		}
		if def, ok := propAny["default"]; ok {
			ps.Default = def
		}
		if enumList, ok := propAny["enum"].([]any); ok {
			ps.Enum = enumList
		}
		out = append(out, ps)
	}
	return out
}

func jsonSchemaType(v any) tool.ParamType {
	s, _ := v.(string)
	switch s {
	case "number", "integer":
		return tool.ParamNumber
	case "boolean":
		return tool.ParamBoolean
	case "array":
		return tool.ParamArray
	case "object":
		return tool.ParamObject
	default:
		return tool.ParamString
	}
}
