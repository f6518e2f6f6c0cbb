package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMutation is emitted after a write operation commits on a shard.
	EventTypeMutation = "vecshard.mutation"
)

// MutationEvent is a transport-neutral event payload for a committed write.
type MutationEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Shard         string    `json:"shard"`
	Operation     string    `json:"operation"`

	// IDs lists the vectors or documents touched. It is empty for deleteAll.
	IDs []string `json:"ids,omitempty"`
}

// NewMutationEvent stamps a new event for operation on shard.
func NewMutationEvent(shard, operation string, ids []string) *MutationEvent {
	return &MutationEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMutation,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Shard:         shard,
		Operation:     operation,
		IDs:           ids,
	}
}
