package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/dispatch"
	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/shard"
	"github.com/papercomputeco/vecshard/pkg/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleOperation handles POST /v1/shards/:shard/:operation. The request body
// is the operation payload and is passed through to the dispatcher as is.
func (s *Server) handleOperation(c *fiber.Ctx) error {
	key := c.Params("shard")
	operation := c.Params("operation")

	ctx := c.UserContext()
	if token := bearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		ctx = auth.WithToken(ctx, token)
	}

	// fiber reuses the body buffer once the handler returns
	payload := json.RawMessage(append([]byte(nil), c.Body()...))

	resp, err := s.exec.Execute(ctx, key, operation, payload)
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			s.logger.Error("operation failed",
				zap.String("shard", key),
				zap.String("operation", operation),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
	}

	if invalid, ok := resp.(dispatch.InvalidOperationResponse); ok {
		return c.Status(fiber.StatusBadRequest).JSON(invalid)
	}

	return c.JSON(resp)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func statusFor(err error) int {
	var notFound storage.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.Is(err, auth.ErrNoUser), errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, dispatch.ErrInvalidPayload), errors.Is(err, shard.ErrInvalidKey):
		return fiber.StatusBadRequest
	case errors.Is(err, embeddings.ErrEmbedding):
		return fiber.StatusBadGateway
	case errors.Is(err, shard.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
