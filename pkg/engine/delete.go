package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/storage"
)

// DeleteError reports a batch deletion that stopped partway. Deleted lists
// the ids removed before the failure; those stay committed.
type DeleteError struct {
	Kind    string
	ID      string
	Deleted []string
	Err     error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("deleting %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// Delete removes vectors by id, one transaction per id. It stops at the first
// failure and returns a *DeleteError.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	return e.deleteEach(ctx, "vector", ids, func(tx storage.Tx, id string) error {
		return tx.DeleteVector(ctx, id)
	})
}

// DeleteDocuments removes documents and all of their chunks, one transaction
// per document. It stops at the first failure and returns a *DeleteError.
func (e *Engine) DeleteDocuments(ctx context.Context, ids []string) error {
	return e.deleteEach(ctx, "document", ids, func(tx storage.Tx, id string) error {
		return tx.DeleteDocument(ctx, id)
	})
}

func (e *Engine) deleteEach(ctx context.Context, kind string, ids []string, del func(storage.Tx, string) error) error {
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		err := e.driver.Update(ctx, func(tx storage.Tx) error {
			return del(tx, id)
		})
		if err != nil {
			return &DeleteError{Kind: kind, ID: id, Deleted: deleted, Err: err}
		}
		deleted = append(deleted, id)
	}

	e.logger.Debug("deleted "+kind+"s", zap.Strings("ids", ids))
	return nil
}

// DeleteAll wipes the shard.
func (e *Engine) DeleteAll(ctx context.Context) error {
	err := e.driver.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteAll(ctx)
	})
	if err != nil {
		return fmt.Errorf("deleting all vectors: %w", err)
	}

	e.logger.Debug("deleted all vectors")
	return nil
}
