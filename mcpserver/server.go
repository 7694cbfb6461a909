package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/sandbox"
)

// Executor runs submissions. *execution.Service implements it.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) (sandbox.Result, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	registry  *language.Registry
	exec      Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, registry *language.Registry, exec Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		registry: registry,
		exec:     exec,
	}

	logger.Info("configuration loaded",
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.Bool("server.mcp_enabled", cfg.Server.MCPEnabled),
		zap.Int("sandbox.timeout_ms", cfg.Sandbox.TimeoutMS),
		zap.Int("sandbox.memory_mb", cfg.Sandbox.MemoryMB),
		zap.String("sandbox.user", cfg.Sandbox.User),
		zap.Int("sandbox.max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.Strings("languages", registry.IDs()),
	)

	s.mcpServer = server.NewMCPServer("codeide-executor", "1.0.0", server.WithToolCapabilities(false))

	s.registerExecuteCodeTool()
	s.registerListLanguagesTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Run source code in an isolated, network-disabled container and return its output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code of the program",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Runtime language",
					"enum":        s.registry.IDs(),
				},
				"stdin": map[string]any{
					"type":        "string",
					"description": "Standard input for the program (optional)",
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// registerListLanguagesTool registers the list_languages tool
func (s *MCPServer) registerListLanguagesTool() {
	tool := mcp.Tool{
		Name:        "list_languages",
		Description: "List the languages execute_code accepts with their runtime images",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleListLanguages)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := execution.Request{
		Code:     request.GetString("code", ""),
		Language: request.GetString("language", ""),
		Stdin:    request.GetString("stdin", ""),
	}

	s.logger.Info("code execution requested", zap.String("language", req.Language))

	result, err := s.exec.Execute(ctx, req)
	if err != nil {
		var verr *execution.ValidationError
		if errors.As(err, &verr) {
			return mcp.NewToolResultError(verr.Message), nil
		}

		s.logger.Error("execution failed", zap.String("language", req.Language), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Execution failed: %v", err)), nil
	}

	s.logger.Info("code execution completed",
		zap.String("execution_id", result.ExecutionID),
		zap.String("language", req.Language),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return jsonResult(result)
}

// handleListLanguages handles the list_languages tool
func (s *MCPServer) handleListLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.registry.Profiles())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns the streamable HTTP transport for mounting on an existing router
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
