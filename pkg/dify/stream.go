package dify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/sse"
)

// ErrStreamClosed is returned by Next after Close, and is the abort cause
// seen by a Next call blocked while Close runs.
var ErrStreamClosed = errors.New("dify stream closed")

// Stream is one streaming chat-messages response. It is driven by a single
// goroutine calling Next; Close may be called from any goroutine.
type Stream struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	body   io.ReadCloser
	idle   *idleReader
	reader *sse.Reader
	logger *slog.Logger

	err    error
	events atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewStream decodes body as a chat-messages event stream. cancel must abort
// whatever request produced body; ctx is the context derived alongside it.
// A nil log discards stream diagnostics.
func NewStream(ctx context.Context, cancel context.CancelCauseFunc, body io.ReadCloser, idleTimeout time.Duration, log *slog.Logger) *Stream {
	if log == nil {
		log = logger.Nop()
	}

	s := &Stream{
		ctx:    ctx,
		cancel: cancel,
		body:   body,
		logger: log,
	}

	var src io.Reader = body
	if idleTimeout > 0 {
		s.idle = newIdleReader(body, idleTimeout, func() { cancel(ErrIdleTimeout) })
		src = s.idle
	}
	s.reader = sse.NewReader(src)
	return s
}

// Next returns the next validated event, blocking until one is complete.
// It returns io.EOF once the upstream ends normally. Any other error
// (malformed frame, unknown event, cancellation, idle timeout, network
// failure) is returned once and the stream is closed; later calls return
// the same error.
func (s *Stream) Next() (Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.closed.Load() {
		return nil, ErrStreamClosed
	}

	frame, err := s.reader.Next()
	if err != nil {
		return nil, s.fail(s.readError(err))
	}

	ev, err := ParseEvent(frame)
	if err != nil {
		return nil, s.fail(err)
	}

	s.events.Add(1)
	return ev, nil
}

func (s *Stream) readError(err error) error {
	// A cancelled request surfaces as whatever the transport reports; the
	// context cause says why.
	if cause := context.Cause(s.ctx); cause != nil {
		return fmt.Errorf("dify stream aborted: %w", cause)
	}
	if errors.Is(err, io.EOF) {
		if rest := s.reader.Remainder(); len(rest) > 0 {
			s.logger.Debug("dropping unterminated trailing line", "bytes", len(rest))
		}
		return io.EOF
	}
	var frameErr *sse.FrameError
	if errors.As(err, &frameErr) {
		return err
	}
	return fmt.Errorf("reading dify stream: %w", err)
}

func (s *Stream) fail(err error) error {
	s.err = err
	_ = s.Close()
	return err
}

// Close aborts the upstream request and releases the response body. It is
// idempotent and the body is closed exactly once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel(ErrStreamClosed)
		if s.idle != nil {
			s.idle.stop()
		}
		s.closeErr = s.body.Close()
		s.logger.Debug("dify stream closed", "events", s.events.Load())
	})
	return s.closeErr
}

// Events adapts the stream to a range-over-func loop. The stream is closed
// when the loop ends for any reason: exhaustion, an error, or break. A
// normal end yields nothing; errors are yielded once as (nil, err).
func (s *Stream) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.Close()

		for {
			ev, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// idleReader fires onIdle when a single Read blocks for longer than timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	t := time.AfterFunc(timeout, onIdle)
	t.Stop()
	return &idleReader{r: r, timeout: timeout, timer: t}
}

func (ir *idleReader) Read(p []byte) (int, error) {
	ir.timer.Reset(ir.timeout)
	n, err := ir.r.Read(p)
	ir.timer.Stop()
	return n, err
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
