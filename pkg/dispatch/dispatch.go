// Package dispatch routes named operations with JSON payloads to the
// pipelines of one shard.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/vecshard/pkg/engine"
	"github.com/papercomputeco/vecshard/pkg/eventstream"
)

// ErrInvalidPayload is returned when a payload cannot be decoded or lacks a
// required field.
var ErrInvalidPayload = errors.New("invalid payload")

// Dispatcher is the single entry point of a shard.
type Dispatcher struct {
	shard     string
	engine    *engine.Engine
	publisher eventstream.Publisher
	logger    *zap.Logger
}

// New creates a Dispatcher for the shard named shard. A nil publisher
// disables mutation events. The Dispatcher takes ownership of eng.
func New(shard string, eng *engine.Engine, publisher eventstream.Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		shard:     shard,
		engine:    eng,
		publisher: publisher,
		logger:    logger.With(zap.String("shard", shard)),
	}
}

// Execute runs operation with payload and returns a JSON-serializable
// response. An unrecognized operation is not an error; it yields an
// InvalidOperationResponse.
func (d *Dispatcher) Execute(ctx context.Context, operation string, payload json.RawMessage) (any, error) {
	d.logger.Debug("executing operation", zap.String("operation", operation))

	switch operation {
	case OpPut:
		return d.put(ctx, payload)
	case OpBulkPut:
		return d.bulkPut(ctx, payload)
	case OpGet:
		return d.get(ctx, payload)
	case OpDelete:
		return d.delete(ctx, payload)
	case OpDeleteAll:
		return d.deleteAll(ctx)
	case OpStoreDocument:
		return d.storeDocument(ctx, payload)
	case OpGetDocument:
		return d.getDocument(ctx, payload)
	case OpSearchDocuments:
		return d.searchDocuments(ctx, payload)
	case OpDeleteDocument:
		return d.deleteDocument(ctx, payload)
	case OpSearch:
		return d.search(ctx, payload)
	case OpEmbed:
		return d.embed(ctx, payload)
	default:
		d.logger.Warn("invalid operation", zap.String("operation", operation))
		return InvalidOperationResponse{Error: InvalidOperationMessage}, nil
	}
}

// Close closes the shard's engine and storage.
func (d *Dispatcher) Close() error {
	return d.engine.Close()
}

func (d *Dispatcher) put(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[engine.VectorInput](payload)
	if err != nil {
		return nil, err
	}

	id, err := d.engine.Put(ctx, in)
	if err != nil {
		return nil, err
	}

	d.publish(ctx, OpPut, []string{id})
	return IDResponse{ID: id}, nil
}

func (d *Dispatcher) bulkPut(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[BulkPutRequest](payload)
	if err != nil {
		return nil, err
	}

	ids, err := d.engine.BulkPut(ctx, in.Vectors)
	if len(ids) > 0 {
		d.publish(ctx, OpBulkPut, ids)
	}
	if err != nil {
		return nil, err
	}

	return BulkPutResponse{Message: msgBulkStored, IDs: ids}, nil
}

func (d *Dispatcher) get(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[IDRequest](payload)
	if err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidPayload)
	}

	return d.engine.Get(ctx, in.ID)
}

func (d *Dispatcher) delete(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[IDsRequest](payload)
	if err != nil {
		return nil, err
	}

	if err := d.engine.Delete(ctx, in.IDs); err != nil {
		d.logger.Error("deleting vectors failed", zap.Strings("ids", in.IDs), zap.Error(err))
		d.publishDeleted(ctx, OpDelete, err)
		return MessageResponse{Message: msgDeleteFailed}, nil
	}

	d.publish(ctx, OpDelete, in.IDs)
	return MessageResponse{Message: msgDeleted}, nil
}

func (d *Dispatcher) deleteAll(ctx context.Context) (any, error) {
	if err := d.engine.DeleteAll(ctx); err != nil {
		return nil, err
	}

	d.publish(ctx, OpDeleteAll, nil)
	return MessageResponse{Message: msgAllDeleted}, nil
}

func (d *Dispatcher) storeDocument(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[engine.DocumentInput](payload)
	if err != nil {
		return nil, err
	}

	id, err := d.engine.StoreDocument(ctx, in)
	if err != nil {
		return nil, err
	}

	d.publish(ctx, OpStoreDocument, []string{id})
	return IDResponse{ID: id}, nil
}

func (d *Dispatcher) getDocument(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[IDRequest](payload)
	if err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidPayload)
	}

	return d.engine.GetDocument(ctx, in.ID)
}

func (d *Dispatcher) searchDocuments(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[SearchDocumentsRequest](payload)
	if err != nil {
		return nil, err
	}

	return d.engine.SearchDocuments(ctx, in.Query, in.Namespace, in.TopN)
}

func (d *Dispatcher) deleteDocument(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[IDsRequest](payload)
	if err != nil {
		return nil, err
	}

	if err := d.engine.DeleteDocuments(ctx, in.IDs); err != nil {
		d.logger.Error("deleting documents failed", zap.Strings("ids", in.IDs), zap.Error(err))
		d.publishDeleted(ctx, OpDeleteDocument, err)
		return MessageResponse{Message: msgDocsDeleteFailed}, nil
	}

	d.publish(ctx, OpDeleteDocument, in.IDs)
	return MessageResponse{Message: msgDocsDeleted}, nil
}

func (d *Dispatcher) search(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[SearchRequest](payload)
	if err != nil {
		return nil, err
	}

	return d.engine.Search(ctx, in.Vector, in.TopN)
}

func (d *Dispatcher) embed(ctx context.Context, payload json.RawMessage) (any, error) {
	in, err := decode[EmbedRequest](payload)
	if err != nil {
		return nil, err
	}

	vec, err := d.engine.Embed(ctx, in.Content)
	if err != nil {
		return nil, err
	}
	return EmbedResponse{Embeddings: vec}, nil
}

// publish emits a mutation event. Failures are logged and never fail the
// operation that already committed.
// publishDeleted announces the ids a failed batch deletion still committed.
func (d *Dispatcher) publishDeleted(ctx context.Context, operation string, err error) {
	var partial *engine.DeleteError
	if errors.As(err, &partial) && len(partial.Deleted) > 0 {
		d.publish(ctx, operation, partial.Deleted)
	}
}

func (d *Dispatcher) publish(ctx context.Context, operation string, ids []string) {
	if d.publisher == nil {
		return
	}

	event := eventstream.NewMutationEvent(d.shard, operation, ids)
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("publishing mutation event failed",
			zap.String("operation", operation),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
}

// decode unmarshals payload into T. An empty payload decodes to the zero
// value.
func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(payload)) == 0 {
		return v, nil
	}

	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return v, nil
}
