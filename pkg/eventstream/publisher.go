// Package eventstream publishes notifications about committed shard
// mutations to an event stream backend.
package eventstream

import "context"

// Publisher publishes mutation events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *MutationEvent) error
	Close() error
}
