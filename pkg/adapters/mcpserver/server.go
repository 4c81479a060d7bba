// Package mcpserver exposes the gateway itself as an MCP server, so
// MCP-speaking agents can drive tool execution through it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/toolgate/pkg/orchestrator"
)

// ToolClient is the execution surface exposed over MCP.
type ToolClient interface {
	Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error)
	Connections(ctx context.Context, userID string) (map[string]bool, error)
}

// StatusReporter reports the managed tool servers.
type StatusReporter interface {
	Status() map[string]orchestrator.ServerStatus
	Names() []string
}

// Server wraps the gateway and exposes it as an MCP server.
type Server struct {
	tools     ToolClient
	status    StatusReporter
	mcpServer *server.MCPServer
}

// NewServer creates the MCP surface under the given version string.
func NewServer(tools ToolClient, status StatusReporter, version string) *Server {
	s := &Server{
		tools:     tools,
		status:    status,
		mcpServer: server.NewMCPServer("toolgate-mcp", version),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	executeTool := mcp.NewTool("execute_operation",
		mcp.WithDescription("Execute one operation on a managed tool server on behalf of a user."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User whose stored credentials apply")),
		mcp.WithString("service", mcp.Required(), mcp.Description("Tool server name, e.g. github or slack")),
		mcp.WithString("operation", mcp.Required(), mcp.Description("Operation name understood by the server")),
		mcp.WithString("arguments", mcp.Description("JSON object of operation arguments (optional)")),
	)
	s.mcpServer.AddTool(executeTool, s.handleExecute)

	s.mcpServer.AddTool(mcp.NewTool("server_status",
		mcp.WithDescription("Report the run state of every managed tool server."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.status.Status())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_servers",
		mcp.WithDescription("List the names of the registered tool servers."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.status.Names())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_connections",
		mcp.WithDescription("Report which services a user has stored credentials for."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User to check")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		connections, err := s.tools.Connections(ctx, userID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list connections: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(connections)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	service, err := request.RequireString("service")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	operation, err := request.RequireString("operation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := map[string]any{}
	if raw := request.GetString("arguments", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("arguments is not a JSON object: %v", err)), nil
		}
	}

	result, err := s.tools.Execute(ctx, userID, service, operation, args)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("operation failed: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
