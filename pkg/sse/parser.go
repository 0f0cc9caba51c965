package sse

import (
	"encoding/json"
	"strings"
)

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// ParseLine applies one line to the cursor and reports the frame it yields,
// if any. Rules, in priority order:
//
//  1. "event: <name>" sets the pending event and yields nothing.
//  2. "data: <json>" yields the JSON payload and clears the pending event.
//  3. An empty line while "ping" is pending yields {"event":"ping"} and
//     clears the pending event.
//  4. Anything else (comments, ids, other blank lines) is ignored.
//
// ParseLine is deterministic: the same lines applied to the same starting
// cursor always yield the same frames.
func ParseLine(line string, cur *Cursor) (Frame, bool, error) {
	switch {
	case strings.HasPrefix(line, eventPrefix):
		cur.Event = strings.TrimSpace(line[len(eventPrefix):])
		return nil, false, nil

	case strings.HasPrefix(line, dataPrefix):
		payload := line[len(dataPrefix):]
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			return nil, false, &FrameError{Line: line, Err: err}
		}
		cur.Reset()
		return Frame(raw), true, nil

	case line == "" && cur.Event == PingEvent:
		cur.Reset()
		return PingFrame(), true, nil
	}

	return nil, false, nil
}

// ParseLines runs ParseLine over every line, starting from cur, and returns
// the frames in order. It stops at the first malformed data line.
func ParseLines(lines []string, cur *Cursor) ([]Frame, error) {
	var frames []Frame
	for _, line := range lines {
		frame, ok, err := ParseLine(line, cur)
		if err != nil {
			return frames, err
		}
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}
