// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the script engine as the execute_script tool
// using the mark3labs/mcp-go library. A call carries either inline code or a
// file path plus an optional timeout, and the tool result is the text
// rendered by the engine, flagged as an error for every outcome other than
// a successful run.
//
// The server supports both stdio and streamable HTTP transports as configured
// by the application configuration. HTTP is served over h2c so clients may
// use HTTP/2 without TLS.
//
// Usage:
//
//	server := mcpserver.New(cfg, logger, eng)
//	err := server.ServeStdio(ctx) // or server.ServeHTTP()
package mcpserver
