package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/auth"
	"github.com/papercomputeco/vecshard/pkg/chunker"
	"github.com/papercomputeco/vecshard/pkg/embeddings"
	"github.com/papercomputeco/vecshard/pkg/storage"
	"github.com/papercomputeco/vecshard/pkg/utils"
	"github.com/papercomputeco/vecshard/pkg/vector"
)

// previewLen bounds document content in debug logs.
const previewLen = 64

// Put stores one vector in a single transaction and returns its id.
func (e *Engine) Put(ctx context.Context, in VectorInput) (string, error) {
	user, err := auth.RequireUser(ctx, e.gateway)
	if err != nil {
		return "", err
	}

	return e.put(ctx, user.ID, in)
}

// BulkPut stores vectors one transaction at a time, in order. On failure it
// returns the ids stored so far along with the error; those stay committed.
func (e *Engine) BulkPut(ctx context.Context, in []VectorInput) ([]string, error) {
	user, err := auth.RequireUser(ctx, e.gateway)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(in))
	for i, item := range in {
		id, err := e.put(ctx, user.ID, item)
		if err != nil {
			return ids, fmt.Errorf("storing vector %d of %d: %w", i+1, len(in), err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func (e *Engine) put(ctx context.Context, ownerID string, in VectorInput) (string, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	blob := vector.Encode(in.Vector)

	err := e.driver.Update(ctx, func(tx storage.Tx) error {
		if err := removeChunks(ctx, tx, id); err != nil {
			return err
		}

		nsID, err := tx.EnsureNamespace(ctx, in.Namespace, ownerID)
		if err != nil {
			return err
		}

		docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
			ID:          id,
			NamespaceID: nsID,
			Content:     in.Content,
		})
		if err != nil {
			return err
		}

		return tx.InsertContentAndVector(ctx, storage.ContentInput{
			ID:         id,
			DocumentID: docID,
			Text:       in.Content,
			Embedding:  blob,
		})
	})
	if err != nil {
		return "", fmt.Errorf("storing vector %s: %w", id, err)
	}

	e.logger.Debug("stored vector",
		zap.String("id", id),
		zap.String("namespace", in.Namespace),
		zap.Int("dimensions", len(in.Vector)),
	)

	return id, nil
}

// StoreDocument embeds and stores a text document. Documents within the
// token limit are embedded whole. Larger documents are stored as a parent row
// with an empty vector plus one embedded row per chunk; the parent commits
// before the chunks are embedded, so a failure in between leaves a document
// that GetDocument reports as incomplete. Storing the same id again replaces
// any previous chunks.
func (e *Engine) StoreDocument(ctx context.Context, in DocumentInput) (string, error) {
	user, err := auth.RequireUser(ctx, e.gateway)
	if err != nil {
		return "", err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	count, ok := chunker.CheckTokenLimit(e.tokenizer, in.Content, e.tokenLimit)
	if ok {
		return id, e.storeWhole(ctx, user.ID, id, in)
	}

	e.logger.Debug("document exceeds token limit, chunking",
		zap.String("id", id),
		zap.Int("tokens", count),
		zap.Int("limit", e.tokenLimit),
	)
	return id, e.storeChunked(ctx, user.ID, id, in)
}

func (e *Engine) storeWhole(ctx context.Context, ownerID, id string, in DocumentInput) error {
	embedding, err := embeddings.EmbedOne(ctx, e.embedder, in.Content)
	if err != nil {
		return fmt.Errorf("embedding document %s: %w", id, err)
	}

	err = e.driver.Update(ctx, func(tx storage.Tx) error {
		if err := removeChunks(ctx, tx, id); err != nil {
			return err
		}

		nsID, err := tx.EnsureNamespace(ctx, in.Namespace, ownerID)
		if err != nil {
			return err
		}

		docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
			ID:          id,
			NamespaceID: nsID,
			Content:     in.Content,
		})
		if err != nil {
			return err
		}

		return tx.InsertContentAndVector(ctx, storage.ContentInput{
			ID:         id,
			DocumentID: docID,
			Text:       in.Content,
			Embedding:  vector.Encode(embedding),
		})
	})
	if err != nil {
		return fmt.Errorf("storing document %s: %w", id, err)
	}

	e.logger.Debug("stored document",
		zap.String("id", id),
		zap.String("namespace", in.Namespace),
		zap.String("preview", utils.Truncate(in.Content, previewLen)),
	)
	return nil
}

func (e *Engine) storeChunked(ctx context.Context, ownerID, id string, in DocumentInput) error {
	chunks := e.chunker.Split(in.Content)

	err := e.driver.Update(ctx, func(tx storage.Tx) error {
		if err := removeChunks(ctx, tx, id); err != nil {
			return err
		}

		nsID, err := tx.EnsureNamespace(ctx, in.Namespace, ownerID)
		if err != nil {
			return err
		}

		docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{
			ID:             id,
			NamespaceID:    nsID,
			Content:        in.Content,
			IsChunked:      true,
			ExpectedChunks: len(chunks),
		})
		if err != nil {
			return err
		}

		// The parent row is never searchable on its own.
		return tx.InsertContentAndVector(ctx, storage.ContentInput{
			ID:         id,
			DocumentID: docID,
			Text:       in.Content,
			Embedding:  []byte{},
		})
	})
	if err != nil {
		return fmt.Errorf("storing parent of document %s: %w", id, err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors := e.embedChunks(ctx, id, texts)

	err = e.driver.Update(ctx, func(tx storage.Tx) error {
		docID, err := tx.EnsureDocument(ctx, storage.DocumentInput{ParentID: id})
		if err != nil {
			return err
		}

		for i, ch := range chunks {
			err := tx.InsertContentAndVector(ctx, storage.ContentInput{
				ID:         ChunkID(id, i),
				DocumentID: docID,
				Text:       ch.Text,
				IsChunk:    true,
				ChunkIndex: i,
				TokenStart: ch.TokenStart,
				TokenEnd:   ch.TokenEnd,
				Embedding:  vector.Encode(vectors[i]),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing chunks of document %s: %w", id, err)
	}

	e.logger.Debug("stored chunked document",
		zap.String("id", id),
		zap.String("namespace", in.Namespace),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// embedChunks embeds chunk texts in one batch, falling back to one call per
// chunk if the batch fails. A chunk that still cannot be embedded gets a nil
// vector, stored as an empty placeholder that never matches a search.
func (e *Engine) embedChunks(ctx context.Context, documentID string, texts []string) [][]float64 {
	out := make([][]float64, len(texts))

	batch, err := e.embedder.Embed(ctx, texts)
	if err == nil && len(batch) == len(texts) {
		copy(out, batch)
		return out
	}

	if err == nil {
		err = fmt.Errorf("%w: expected %d embeddings, got %d", embeddings.ErrEmbedding, len(texts), len(batch))
	}
	e.logger.Warn("batch chunk embedding failed, embedding chunks one at a time",
		zap.String("document", documentID),
		zap.Error(err),
	)

	for i, text := range texts {
		v, err := embeddings.EmbedOne(ctx, e.embedder, text)
		if err != nil {
			e.logger.Warn("chunk embedding failed, storing placeholder",
				zap.String("document", documentID),
				zap.Int("chunk", i),
				zap.Error(err),
			)
			continue
		}
		out[i] = v
	}

	return out
}

// removeChunks deletes every chunk row of a document, leaving its own row.
func removeChunks(ctx context.Context, tx storage.Tx, documentID string) error {
	ids, err := tx.GetContentIDs(ctx, documentID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == documentID {
			continue
		}
		if err := tx.DeleteVector(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
