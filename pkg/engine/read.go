package engine

import (
	"context"
	"fmt"

	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/storage"
	"github.com/papercomputeco/vecshard/pkg/vector"
)

// Get returns the vector stored under id. A missing id yields
// storage.ErrNotFound; an undecodable blob yields vector.CorruptDataError.
func (e *Engine) Get(ctx context.Context, id string) (*Vector, error) {
	var row *storage.VectorRow
	err := e.driver.View(ctx, func(tx storage.Tx) error {
		var err error
		row, err = tx.GetVector(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	vec, err := vector.Decode(row.Embedding)
	if err != nil {
		return nil, fmt.Errorf("decoding vector %s: %w", id, err)
	}

	return &Vector{
		ID:        row.ID,
		Namespace: row.Namespace,
		Vector:    vec,
		Content:   row.Content,
	}, nil
}

// GetDocument returns the document stored under id, or storage.ErrNotFound.
func (e *Engine) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc *storage.Document
	err := e.driver.View(ctx, func(tx storage.Tx) error {
		var err error
		doc, err = tx.GetDocument(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Document{
		ID:             doc.ID,
		Namespace:      doc.Namespace,
		Content:        doc.Content,
		IsChunked:      doc.IsChunked,
		Chunks:         doc.ChunkCount,
		ExpectedChunks: doc.ExpectedChunks,
		Complete:       doc.Complete(),
	}, nil
}

// Embed returns the embedding of one text.
func (e *Engine) Embed(ctx context.Context, text string) ([]float64, error) {
	return embeddings.EmbedOne(ctx, e.embedder, text)
}
