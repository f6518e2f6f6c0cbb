package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil mutation event")

	// ErrIncompleteEvent indicates an event without a shard or operation.
	ErrIncompleteEvent = errors.New("mutation event requires a shard and an operation")
)

// Validate reports whether event can be published.
func Validate(event *MutationEvent) error {
	if event == nil {
		return ErrNilEvent
	}
	if event.Shard == "" || event.Operation == "" {
		return ErrIncompleteEvent
	}
	return nil
}
