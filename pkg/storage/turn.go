package storage

import (
	"time"
)

// TurnStatus is how a relayed turn ended.
type TurnStatus string

const (
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
	TurnStopped   TurnStatus = "stopped"
)

// Turn is one chat exchange relayed to Dify: the query a user sent and the
// answer that came back, plus enough identifiers to find it again.
type Turn struct {
	ID             string     `json:"id"`
	User           string     `json:"user"`
	ConversationID string     `json:"conversation_id"`
	MessageID      string     `json:"message_id,omitempty"`
	TaskID         string     `json:"task_id,omitempty"`
	Query          string     `json:"query"`
	Answer         string     `json:"answer"`
	Status         TurnStatus `json:"status"`
	Streaming      bool       `json:"streaming"`
	EventCount     int        `json:"event_count"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    time.Time  `json:"completed_at"`
}

// Duration is the wall time between the request and its last event.
func (t *Turn) Duration() time.Duration {
	return t.CompletedAt.Sub(t.StartedAt)
}
