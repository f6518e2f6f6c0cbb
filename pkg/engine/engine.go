// Package engine implements the insertion, deletion and search pipelines of
// a single shard on top of a storage.Driver.
package engine

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/chunker"
	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/storage"
)

const (
	// DefaultTokenLimit is the largest document, in tokens, embedded whole.
	DefaultTokenLimit = 8000

	// DefaultChunkRatio sizes chunks of oversized documents as a fraction of
	// the token limit.
	DefaultChunkRatio = 0.8

	// DefaultOverlapRatio sizes chunk overlap as a fraction of the token limit.
	DefaultOverlapRatio = 0.1
)

// Config holds the collaborators and limits of an Engine.
type Config struct {
	Embedder  embeddings.Embedder
	Tokenizer chunker.Tokenizer
	Gateway   auth.Gateway

	// TokenLimit defaults to DefaultTokenLimit.
	TokenLimit int

	// ChunkRatio and OverlapRatio default to DefaultChunkRatio and
	// DefaultOverlapRatio.
	ChunkRatio   float64
	OverlapRatio float64
}

// Engine runs the pipelines of one shard. It is not safe for concurrent use;
// callers serialize access per shard.
type Engine struct {
	driver     storage.Driver
	embedder   embeddings.Embedder
	tokenizer  chunker.Tokenizer
	gateway    auth.Gateway
	tokenLimit int
	chunker    *chunker.Chunker
	logger     *zap.Logger
}

// New creates an Engine over driver. The Engine takes ownership of driver.
func New(driver storage.Driver, c Config, logger *zap.Logger) (*Engine, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Tokenizer == nil {
		return nil, errors.New("tokenizer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := c.TokenLimit
	if limit <= 0 {
		limit = DefaultTokenLimit
	}
	chunkRatio := c.ChunkRatio
	if chunkRatio <= 0 {
		chunkRatio = DefaultChunkRatio
	}
	overlapRatio := c.OverlapRatio
	if overlapRatio <= 0 {
		overlapRatio = DefaultOverlapRatio
	}

	chunkSize := int(math.Floor(float64(limit) * chunkRatio))
	overlap := int(math.Floor(float64(limit) * overlapRatio))
	if chunkSize < 1 {
		return nil, fmt.Errorf("token limit %d with chunk ratio %v leaves no room for a chunk", limit, chunkRatio)
	}

	return &Engine{
		driver:     driver,
		embedder:   c.Embedder,
		tokenizer:  c.Tokenizer,
		gateway:    c.Gateway,
		tokenLimit: limit,
		chunker: chunker.New(c.Tokenizer,
			chunker.WithChunkSize(chunkSize),
			chunker.WithOverlap(overlap),
		),
		logger: logger,
	}, nil
}

// Close closes the underlying storage driver.
func (e *Engine) Close() error {
	return e.driver.Close()
}
