// Package api provides the HTTP transport for dispatching shard operations.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// DisableMCP skips mounting the MCP tool server at /mcp
	DisableMCP bool
}
