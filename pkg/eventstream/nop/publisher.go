// Package nop provides the publisher used when mutation events are disabled.
package nop

import (
	"context"

	"github.com/papercomputeco/vecshard/pkg/eventstream"
)

// Publisher drops every event after validating it.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, event *eventstream.MutationEvent) error {
	return eventstream.Validate(event)
}

func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
