package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a relayed turn ends and is stored.
	EventTypeTurnCompleted = "relay.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a finished turn.
type TurnCompletedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Turn          storage.Turn    `json:"turn"`
}

// EventSource identifies where the turn was relayed.
type EventSource struct {
	Service  string `json:"service"`
	Provider string `json:"provider"`
	BaseURL  string `json:"base_url,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	Path       string `json:"path,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Streaming  bool   `json:"streaming"`
}

// NewTurnCompletedEvent wraps turn in a v1 event with a fresh ID.
func NewTurnCompletedEvent(turn *storage.Turn, source EventSource, path string) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta: TurnRequestMeta{
			Path:       path,
			DurationMs: turn.Duration().Milliseconds(),
			Streaming:  turn.Streaming,
		},
		Turn: *turn,
	}
}
