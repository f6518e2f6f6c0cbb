// Package mcp provides an MCP (Model Context Protocol) server exposing
// document search over the shard store.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/utils"
)

// Executor runs one operation against the shard named key.
type Executor interface {
	Execute(ctx context.Context, key, operation string, payload json.RawMessage) (any, error)
}

type Config struct {
	// Executor dispatches tool calls to shards
	Executor Executor

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the document tools.
func NewServer(c Config) (*Server, error) {
	if c.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vecshard",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchDocumentsToolName,
		Description: searchDocumentsDescription,
	}, s.handleSearchDocuments)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        getDocumentToolName,
		Description: getDocumentDescription,
	}, s.handleGetDocument)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
