// Package embeddings defines the text embedding interface and its providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is returned when embedding generation fails.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts each text into a vector embedding. The result has one
	// embedding per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// EmbedOne embeds a single text and checks the provider returned exactly one
// non-empty vector.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float64, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(out) != 1 || len(out[0]) == 0 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbedding, len(out))
	}

	return out[0], nil
}
