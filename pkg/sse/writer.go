package sse

import (
	"bytes"
	"encoding/json"
	"io"
)

// Writer encodes frames back onto the wire in the same grammar Reader
// accepts, so a relayed stream can be decoded by the same pipeline.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes one frame. The ping frame is written as a bare
// "event: ping" block; everything else as a single "data:" line.
func (w *Writer) WriteFrame(f Frame) error {
	if bytes.Equal(f, pingFrame) {
		_, err := io.WriteString(w.w, eventPrefix+PingEvent+"\n\n")
		return err
	}

	buf := make([]byte, 0, len(dataPrefix)+len(f)+2)
	buf = append(buf, dataPrefix...)
	buf = append(buf, compact(f)...)
	buf = append(buf, '\n', '\n')
	_, err := w.w.Write(buf)
	return err
}

// compact strips insignificant whitespace (including newlines, which would
// otherwise break the one-line data field).
func compact(f Frame) []byte {
	if bytes.IndexByte(f, '\n') < 0 {
		return f
	}
	var out bytes.Buffer
	if err := json.Compact(&out, f); err != nil {
		return f
	}
	return out.Bytes()
}
