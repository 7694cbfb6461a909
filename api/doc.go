// Package api exposes the execution service and the file store over HTTP.
//
// Routes:
//
//	GET    /api/health
//	POST   /api/execute
//	GET    /api/languages
//	GET    /api/files
//	POST   /api/files
//	GET    /api/files/{id}
//	PUT    /api/files/{id}
//	DELETE /api/files/{id}
//	*      /mcp            (when an MCP handler is mounted)
//
// Every response body is JSON. Errors carry an "error" field; a fault inside
// the execution service is reported as
// {"success":false,"error":"Internal server error","message":...}.
package api
