// Package main is the entry point for the scriptbox server.
//
// scriptbox evaluates Go scripts that may reference NuGet packages. Package
// references are resolved against a flat-container feed or an S3 mirror,
// cached on disk, and handed to an interpreter that runs the script under a
// timeout. The server exposes this as an MCP tool over stdio or HTTP.
//
// Commands:
//
//	scriptbox serve            start the MCP server (default)
//	scriptbox run script.go    evaluate one script and print the report
//	scriptbox config           print the effective configuration
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging, viper for configuration and
// cobra for the command line.
package main
