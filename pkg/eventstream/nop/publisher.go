// Package nop provides the publisher used when no event stream is configured.
package nop

import (
	"context"
	"sync"

	"github.com/papercomputeco/relay/pkg/eventstream"
)

// Publisher drops events. It keeps the last ones it was handed so tests can
// see what would have been published.
type Publisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnCompletedEvent
	closed bool
}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn validates input and records the event.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return eventstream.ErrPublisherClosed
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns the events published so far.
func (p *Publisher) Events() []*eventstream.TurnCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.TurnCompletedEvent(nil), p.events...)
}

// Close makes later PublishTurn calls fail. Recorded events stay readable.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
