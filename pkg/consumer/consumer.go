// Package consumer drives a chat event stream to completion, accumulating
// the answer text and the identifiers needed for follow-up turns.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/logger"
)

// Source is a pull-based event stream, such as *dify.Stream.
type Source interface {
	Next() (dify.Event, error)
	Close() error
}

// Entry is one received event with its receipt time relative to the start
// of the request.
type Entry struct {
	Elapsed time.Duration
	Event   dify.Event
}

// StreamError is an error event received in-band.
type StreamError struct {
	Status  int
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	if e.Code == "" {
		return "stream error: " + e.Message
	}
	return fmt.Sprintf("stream error (%s): %s", e.Code, e.Message)
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithConversationID seeds the conversation a follow-up turn belongs to.
func WithConversationID(id string) Option {
	return func(c *Consumer) {
		c.conversationID = id
	}
}

// WithOnEvent registers a callback run after each event is applied.
func WithOnEvent(fn func(Entry)) Option {
	return func(c *Consumer) {
		c.onEvent = fn
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) {
		c.now = now
	}
}

// WithLogger sets the logger that records each handled event at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = l
	}
}

// Consumer accumulates one turn. It is not safe for concurrent use.
type Consumer struct {
	now     func() time.Time
	start   time.Time
	logger  *slog.Logger
	onEvent func(Entry)

	answer         strings.Builder
	conversationID string
	taskID         string
	messageID      string
	entries        []Entry
}

// New returns a Consumer whose clock starts now.
func New(opts ...Option) *Consumer {
	c := &Consumer{
		now:    time.Now,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Handle applies one event. It returns a *StreamError for error events.
func (c *Consumer) Handle(ev dify.Event) error {
	entry := Entry{Elapsed: c.now().Sub(c.start), Event: ev}
	c.entries = append(c.entries, entry)

	if env, ok := dify.EnvelopeOf(ev); ok {
		if env.TaskID != "" {
			c.taskID = env.TaskID
		}
		if env.MessageID != "" {
			c.messageID = env.MessageID
		}
	}

	var err error
	switch e := ev.(type) {
	case *dify.Message:
		c.answer.WriteString(e.Answer)
	case *dify.AgentMessage:
		c.answer.WriteString(e.Answer)
	case *dify.MessageReplace:
		c.answer.Reset()
		c.answer.WriteString(e.Answer)
	case *dify.MessageEnd:
		if e.ConversationID != "" {
			c.conversationID = e.ConversationID
		}
	case *dify.ErrorEvent:
		if e.TaskID != "" {
			c.taskID = e.TaskID
		}
		err = &StreamError{Status: e.Status, Code: e.Code, Message: e.Message}
	}

	c.logger.Debug("event",
		"type", ev.Type(),
		"elapsed", entry.Elapsed,
	)
	if c.onEvent != nil {
		c.onEvent(entry)
	}
	return err
}

// Consume pulls events from src until it ends, fails, or delivers an error
// event. src is always closed. A normal end returns nil.
func (c *Consumer) Consume(src Source) error {
	defer src.Close()

	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.Handle(ev); err != nil {
			return err
		}
	}
}

// IsAbort reports whether err is a caller-initiated cancellation, which
// should be shown as "stopped" rather than as a failure.
func IsAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, dify.ErrStreamClosed)
}

// Answer returns the text accumulated so far.
func (c *Consumer) Answer() string {
	return c.answer.String()
}

// ConversationID returns the conversation to continue on the next turn.
func (c *Consumer) ConversationID() string {
	return c.conversationID
}

// TaskID returns the last task id seen, for stopping generation.
func (c *Consumer) TaskID() string {
	return c.taskID
}

// MessageID returns the ID of the message being answered, or "" before the
// first event that carries one.
func (c *Consumer) MessageID() string {
	return c.messageID
}

// Log returns every event received, in arrival order.
func (c *Consumer) Log() []Entry {
	return c.entries
}
