package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/engine"
)

// ToolName is the name of the script execution tool
const ToolName = "execute_script"

// Runner runs script requests
type Runner interface {
	Run(ctx context.Context, req engine.Request) engine.Response
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	runner    Runner
	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *http.Server
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, runner Runner) *MCPServer {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		runner: runner,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("sandbox.backend", cfg.Sandbox.Backend),
		zap.Int("sandbox.timeout_sec", cfg.Sandbox.TimeoutSec),
		zap.String("sandbox.allowed_root", cfg.Sandbox.AllowedRoot),
		zap.String("resolver.source.kind", cfg.Resolver.Source.Kind),
		zap.String("resolver.target_framework", cfg.Resolver.TargetFramework),
		zap.Int("resolver.max_depth", cfg.Resolver.MaxDepth),
	)

	s.mcpServer = server.NewMCPServer("scriptbox", "1.0.0", server.WithToolCapabilities(false))
	s.registerExecuteScriptTool()
	return s
}

// registerExecuteScriptTool registers the execute_script tool
func (s *MCPServer) registerExecuteScriptTool() {
	tool := mcp.Tool{
		Name: ToolName,
		Description: "Execute a Go script. Top-level declarations and statements may be mixed and a " +
			"trailing expression becomes the result. Packages are referenced with lines of the form " +
			`#r "nuget: PackageName, Version".`,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Script source. Mutually exclusive with file_path",
				},
				"file_path": map[string]any{
					"type":        "string",
					"description": "Path of a script file on the server. Mutually exclusive with code",
				},
				"timeout_seconds": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Execution timeout in seconds (default %d)", s.config.Sandbox.TimeoutSec),
					"minimum":     1,
				},
			},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteScript)
}

// handleExecuteScript handles the execute_script tool
func (s *MCPServer) handleExecuteScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := engine.Request{
		Code:           request.GetString("code", ""),
		FilePath:       request.GetString("file_path", ""),
		TimeoutSeconds: request.GetInt("timeout_seconds", s.config.Sandbox.TimeoutSec),
	}

	s.logger.Info("script execution requested",
		zap.Bool("has_code", req.Code != ""),
		zap.String("file_path", req.FilePath),
		zap.Int("timeout_seconds", req.TimeoutSeconds))

	resp := s.runner.Run(ctx, req)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: resp.Text,
			},
		},
		IsError: resp.Failed,
	}, nil
}

// ServeStdio serves on stdin and stdout until ctx is done
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the streamable HTTP handler wrapped for h2c
func (s *MCPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer))
	return h2c.NewHandler(mux, &http2.Server{})
}

// ServeHTTP starts the server on HTTP and blocks until Shutdown
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port), zap.String("path", "/mcp"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, if running
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
