package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/api/mcp"
)

// Executor runs one operation against the shard named key.
type Executor interface {
	Execute(ctx context.Context, key, operation string, payload json.RawMessage) (any, error)
}

// Server is the API server fronting the shard registry.
type Server struct {
	config Config
	exec   Executor
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server dispatching to exec.
func NewServer(config Config, exec Executor, logger *zap.Logger) (*Server, error) {
	if exec == nil {
		return nil, errors.New("executor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		exec:   exec,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/shards/:shard/:operation", s.handleOperation)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Executor: exec,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// App exposes the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
