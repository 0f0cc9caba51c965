package dify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// textKeys are payload paths that must be present and non-null. An empty
// string is a valid chunk, so validator's required tag cannot express them.
var textKeys = map[EventType][]string{
	EventMessage:        {"answer"},
	EventAgentMessage:   {"answer"},
	EventMessageReplace: {"answer"},
	EventTTSMessage:     {"audio"},
	EventTextChunk:      {"data", "text"},
	EventTextReplace:    {"data", "text"},
}

// ParseEvent decodes one frame payload into its typed event. The "event"
// field selects the variant; unknown variants, type mismatches and missing
// required fields all return an error wrapping ErrInvalidEvent. There is no
// fallback variant.
func ParseEvent(data []byte) (Event, error) {
	var head struct {
		Event EventType `json:"event"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: reading event type: %w", ErrInvalidEvent, err)
	}

	ev := newEvent(head.Event)
	if ev == nil {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, head.Event)
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, head.Event, err)
	}

	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, head.Event, err)
	}

	if path, ok := textKeys[head.Event]; ok {
		if err := requireKey(data, path); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEvent, head.Event, err)
		}
	}

	return ev, nil
}

// requireKey walks path through nested objects in data and fails when a
// key is absent or null.
func requireKey(data []byte, path []string) error {
	raw := json.RawMessage(data)
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return err
		}
		v, ok := obj[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("missing %s", strings.Join(path, "."))
		}
		raw = v
	}
	return nil
}

func newEvent(t EventType) Event {
	switch t {
	case EventMessage:
		return &Message{}
	case EventAgentMessage:
		return &AgentMessage{}
	case EventAgentThought:
		return &AgentThought{}
	case EventMessageFile:
		return &MessageFile{}
	case EventMessageEnd:
		return &MessageEnd{}
	case EventMessageReplace:
		return &MessageReplace{}
	case EventTTSMessage:
		return &TTSMessage{}
	case EventTTSMessageEnd:
		return &TTSMessageEnd{}
	case EventError:
		return &ErrorEvent{}
	case EventWorkflowStarted:
		return &WorkflowStarted{}
	case EventWorkflowFinished:
		return &WorkflowFinished{}
	case EventNodeStarted:
		return &NodeStarted{}
	case EventNodeFinished:
		return &NodeFinished{}
	case EventNodeRetry:
		return &NodeRetry{}
	case EventIterationStarted:
		return &IterationStarted{}
	case EventIterationNext:
		return &IterationNext{}
	case EventIterationCompleted:
		return &IterationCompleted{}
	case EventLoopStarted:
		return &LoopStarted{}
	case EventLoopNext:
		return &LoopNext{}
	case EventLoopCompleted:
		return &LoopCompleted{}
	case EventTextChunk:
		return &TextChunk{}
	case EventTextReplace:
		return &TextReplace{}
	case EventAgentLog:
		return &AgentLog{}
	case EventPing:
		return &Ping{}
	}
	return nil
}
