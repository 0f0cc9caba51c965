// Package inmemory provides a map-backed storage driver for tests and
// ephemeral servers.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/relay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of turns
	mu sync.RWMutex

	// turns is keyed by turn ID
	turns map[string]*storage.Turn
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*storage.Turn),
	}
}

// Put stores a copy of turn.
func (d *Driver) Put(_ context.Context, turn *storage.Turn) error {
	if turn == nil {
		return storage.ErrNilTurn
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *turn
	d.turns[turn.ID] = &stored
	return nil
}

// Get retrieves a turn by its ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	turn, ok := d.turns[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	out := *turn
	return &out, nil
}

// ListByConversation returns the user's turns in a conversation, oldest first.
func (d *Driver) ListByConversation(_ context.Context, user, conversationID string) ([]*storage.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := []*storage.Turn{}
	for _, turn := range d.turns {
		if turn.User == user && turn.ConversationID == conversationID {
			out := *turn
			result = append(result, &out)
		}
	}

	slices.SortFunc(result, func(a, b *storage.Turn) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Count returns the number of turns in the store.
func (d *Driver) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.turns)
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
