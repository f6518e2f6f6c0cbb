// Package testutils holds test doubles shared across package tests.
package testutils

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/embeddings/hash"
)

// MockEmbedder is a test embedder that returns predictable embeddings and
// can be told to fail.
type MockEmbedder struct {
	next embeddings.Embedder

	// FailOn causes Embed to return an error when any input text contains it
	FailOn string

	// FailBatches rejects every call with more than one text
	FailBatches bool

	// Batches counts calls with more than one text
	Batches int

	// Calls counts every call
	Calls int
}

// NewMockEmbedder returns a MockEmbedder producing deterministic
// embeddings of the given dimensions.
func NewMockEmbedder(dimensions uint) *MockEmbedder {
	return &MockEmbedder{next: hash.NewEmbedder(dimensions)}
}

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.Calls++
	if len(texts) > 1 {
		m.Batches++
		if m.FailBatches {
			return nil, fmt.Errorf("%w: mock batch rejected", embeddings.ErrEmbedding)
		}
	}

	for _, text := range texts {
		if m.FailOn != "" && strings.Contains(text, m.FailOn) {
			return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbedding, text)
		}
	}

	return m.next.Embed(ctx, texts)
}

func (m *MockEmbedder) Close() error {
	return nil
}
