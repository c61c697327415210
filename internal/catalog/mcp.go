package catalog

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// BuildMCPTool converts a tool definition into an mcp.Tool with the
// corresponding input schema.
func BuildMCPTool(t Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		opts = append(opts, buildParamOption(p))
	}
	return mcp.NewTool(t.Name, opts...)
}

// buildParamOption maps a Param to the appropriate mcp-go tool option.
func buildParamOption(p Param) mcp.ToolOption {
	var opts []mcp.PropertyOption
	if p.Description != "" {
		opts = append(opts, mcp.Description(p.Description))
	}
	if p.Required {
		opts = append(opts, mcp.Required())
	}

	switch p.Type {
	case TypeInteger:
		if d, ok := p.Default.(int); ok {
			opts = append(opts, mcp.DefaultNumber(float64(d)))
		}
		return mcp.WithNumber(p.Name, opts...)
	case TypeBoolean:
		if d, ok := p.Default.(bool); ok {
			opts = append(opts, mcp.DefaultBool(d))
		}
		return mcp.WithBoolean(p.Name, opts...)
	case TypeStringArray:
		opts = append([]mcp.PropertyOption{mcp.WithStringItems()}, opts...)
		return mcp.WithArray(p.Name, opts...)
	case TypeObject:
		return mcp.WithObject(p.Name, opts...)
	default:
		if d, ok := p.Default.(string); ok {
			opts = append(opts, mcp.DefaultString(d))
		}
		if len(p.Enum) > 0 {
			opts = append(opts, mcp.Enum(p.Enum...))
		}
		return mcp.WithString(p.Name, opts...)
	}
}
