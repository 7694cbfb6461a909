// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the execution service to MCP clients through
// the mark3labs/mcp-go library. Two tools are registered: execute_code runs a
// submission and returns the result as JSON text, list_languages returns the
// language registry.
//
// The server is reachable over stdio (codeide mcp) or mounted as a streamable
// HTTP handler at /mcp by the HTTP API.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, registry, service)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or router.Handle("/mcp", server.HTTPHandler())
package mcpserver
