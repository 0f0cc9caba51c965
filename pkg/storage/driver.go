// Package storage persists relayed chat turns.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving turns in a storage backend.
type Driver interface {
	// Put stores a turn, replacing any stored turn with the same ID.
	Put(ctx context.Context, turn *Turn) error

	// Get retrieves a turn by its ID.
	Get(ctx context.Context, id string) (*Turn, error)

	// ListByConversation returns the turns user made in a conversation,
	// oldest first.
	ListByConversation(ctx context.Context, user, conversationID string) ([]*Turn, error)

	// Close closes the store and releases any resources.
	Close() error
}
