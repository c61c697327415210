package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/jira-bridge/internal/catalog"
	"github.com/bobmcallan/jira-bridge/internal/gateway"
)

// registerTools exposes every catalog tool on the MCP server, all backed
// by the same dispatcher.
func registerTools(s *server.MCPServer, cat *catalog.Catalog, d *gateway.Dispatcher) {
	for _, tool := range cat.Tools() {
		s.AddTool(catalog.BuildMCPTool(tool), handleTool(d, tool.Name))
	}
}

// handleTool bridges one MCP tool call into a gateway dispatch. Failures
// come back as tool errors, never protocol errors, so the calling agent
// sees the structured detail.
func handleTool(d *gateway.Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := d.Dispatch(ctx, gateway.ToolCall{
			Name: name,
			Args: request.GetArguments(),
		})
		return renderResult(res), nil
	}
}

func renderResult(res gateway.Result) *mcp.CallToolResult {
	if res.Err != nil {
		detail, err := json.MarshalIndent(res.Err, "", "  ")
		if err != nil {
			return errorResult(res.Err.Error())
		}
		return errorResult(string(detail))
	}
	body, err := json.MarshalIndent(res.Data, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Error encoding result: %v", err))
	}
	return textResult(string(body))
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
