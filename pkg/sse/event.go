// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// decoder for the Dify chat-messages stream. It turns an upstream byte stream
// into complete lines, and lines into JSON frames, one pull at a time.
//
// The grammar accepted is the subset Dify emits:
//
//	event: <name>\n      (optional)
//	data: <json>\n
//	\n
//
// plus the payload-less keep-alive:
//
//	event: ping\n
//	\n
//
// Event stream format:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"fmt"
)

// PingEvent is the only event name that produces a frame without a data line.
const PingEvent = "ping"

// Frame is one decoded SSE payload. It always holds a complete, valid JSON
// value.
type Frame json.RawMessage

// pingFrame is the synthetic frame yielded for "event: ping" blocks.
var pingFrame = Frame(`{"event":"ping"}`)

// PingFrame returns a fresh copy of the synthetic ping frame.
func PingFrame() Frame {
	f := make(Frame, len(pingFrame))
	copy(f, pingFrame)
	return f
}

// MarshalJSON lets a Frame be embedded in other JSON documents verbatim.
func (f Frame) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return f, nil
}

// String returns the raw JSON text of the frame.
func (f Frame) String() string {
	return string(f)
}

// Cursor is the parser state carried between lines of one stream: the name
// of the currently pending named event, empty when none is pending.
type Cursor struct {
	Event string
}

// Reset clears the pending event.
func (c *Cursor) Reset() {
	c.Event = ""
}

// FrameError is returned when a data line does not hold valid JSON.
type FrameError struct {
	Line string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed SSE data frame %q: %v", e.Line, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
