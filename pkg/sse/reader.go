package sse

import "io"

const defaultChunkSize = 4 * 1024

// Reader pulls frames from an SSE byte stream.
//
// ┌──────────────────┐
// │ source io.Reader │  raw chunks, any size
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │    LineFramer    │  complete lines
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │ ParseLine+Cursor │  frames
// └──────────────────┘
//
// Reader is pull-based: the source is only read when every line from the
// previous chunk has been consumed. A Reader is not safe for concurrent use
// and holds exactly one Cursor for its lifetime.
type Reader struct {
	src    io.Reader
	framer LineFramer
	cursor Cursor
	chunk  []byte

	// pending holds lines from the last chunk not yet applied to the cursor.
	pending []string
	err     error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithChunkSize sets the size of the read buffer. Mostly useful in tests
// that want to force many small reads.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// NewReader returns a Reader that decodes frames from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{src: src}
	for _, opt := range opts {
		opt(r)
	}
	if r.chunk == nil {
		r.chunk = make([]byte, defaultChunkSize)
	}
	return r
}

// Next returns the next frame. It blocks until a frame is complete or the
// source is exhausted. At the end of the stream Next returns io.EOF; any
// unterminated trailing line is dropped (see Remainder).
//
// A malformed data line returns a *FrameError. Errors are sticky: once Next
// fails, every later call returns the same error.
func (r *Reader) Next() (Frame, error) {
	for {
		if r.err != nil {
			return nil, r.err
		}

		for len(r.pending) > 0 {
			line := r.pending[0]
			r.pending = r.pending[1:]

			frame, ok, err := ParseLine(line, &r.cursor)
			if err != nil {
				r.err = err
				return nil, err
			}
			if ok {
				return frame, nil
			}
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.pending = r.framer.Push(r.chunk[:n])
		}
		if err != nil {
			if len(r.pending) > 0 {
				// Drain what this final chunk completed before surfacing err.
				r.src = errReader{err: err}
				continue
			}
			r.err = err
			return nil, err
		}
	}
}

// Cursor returns a copy of the current parser state.
func (r *Reader) Cursor() Cursor {
	return r.cursor
}

// Remainder returns bytes received after the last "\n". Once Next has
// returned io.EOF these are the bytes that were dropped.
func (r *Reader) Remainder() []byte {
	return r.framer.Remainder()
}

// errReader replays a terminal read error once the final chunk has been
// drained.
type errReader struct {
	err error
}

func (e errReader) Read([]byte) (int, error) {
	return 0, e.err
}
