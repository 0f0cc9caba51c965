// Package eventstream publishes relayed turns to downstream consumers.
package eventstream

import (
	"context"
	"errors"
)

var (
	// ErrNilTurnEvent is returned by PublishTurn for a nil event.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrPublisherClosed is returned by PublishTurn after Close.
	ErrPublisherClosed = errors.New("turn publisher closed")
)

// Publisher hands finished turns to an event stream backend. The worker
// pool calls PublishTurn after the turn is stored; a failure is logged and
// never fails the turn.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error
	Close() error
}
