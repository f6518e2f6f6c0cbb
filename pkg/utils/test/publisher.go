package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/vecshard/pkg/eventstream"
)

// RecordingPublisher keeps every published mutation event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MutationEvent

	// Err is returned by Publish instead of recording the event
	Err error
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, event *eventstream.MutationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the recorded events in publish order.
func (p *RecordingPublisher) Events() []*eventstream.MutationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*eventstream.MutationEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *RecordingPublisher) Close() error {
	return nil
}
