package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/relay/pkg/consumer"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Stream outcomes, as recorded in metrics.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeStopped   = "stopped"
)

var errClientGone = errors.New("client disconnected")

// handleChatMessagesStream handles POST /rpc/chatMessagesStream.
//
// The upstream stream is opened before any header is written, so connection
// and API errors still get a JSON error response. Once events flow, a
// failure can only be reported in-band as a final error event.
func (s *Server) handleChatMessagesStream(c *fiber.Ctx) error {
	var req ChatMessagesRequest
	if err := s.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	user := userFrom(c)
	requestID := s.headers.RequestID(c)

	ctx, cancel := context.WithCancelCause(s.ctx)
	stream, err := s.dify.ChatMessagesStream(ctx, req.toDify(user))
	if err != nil {
		cancel(nil)
		return s.writeError(c, err)
	}

	s.headers.SetStreamHeaders(c)

	// io.Pipe gives per-event flushing with backpressure: pw.Write blocks
	// until fasthttp has consumed the chunk. When the client goes away
	// fasthttp closes pr and the next write fails. Heartbeats make that
	// write happen even while the upstream is silent.
	pr, pw := io.Pipe()
	w := sse.NewWriter(pw)
	turn := newTurn(user, req, true)

	s.streams.Add(1)
	go func() {
		defer s.streams.Done()
		defer cancel(nil)
		defer pw.Close()

		s.metrics.activeStreams.Inc()
		defer s.metrics.activeStreams.Dec()

		stopHeartbeat := s.heartbeat(w, func() { cancel(errClientGone) })
		outcome := s.relay(stream, w, turn)
		stopHeartbeat()
		s.metrics.streams.WithLabelValues(outcome).Inc()

		s.logger.Info("stream finished",
			"request_id", requestID,
			"conversation_id", turn.ConversationID,
			"task_id", turn.TaskID,
			"events", turn.EventCount,
			"outcome", outcome,
		)
		s.finishTurn(turn, RouteChatMessagesStream)
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// heartbeat writes a ping frame to w every HeartbeatInterval until the
// returned stop func is called. The first failed write calls gone.
// io.PipeWriter serializes concurrent writes, and each frame is one write.
func (s *Server) heartbeat(w *sse.Writer, gone func()) (stop func()) {
	if s.config.HeartbeatInterval < 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.config.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.WriteFrame(sse.PingFrame()); err != nil {
					gone()
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// relay copies events from stream to w until either side ends, filling in
// turn as it goes. stream is always closed. It returns the stream outcome.
func (s *Server) relay(stream *dify.Stream, w *sse.Writer, turn *storage.Turn) string {
	defer stream.Close()

	cons := consumer.New(
		consumer.WithConversationID(turn.ConversationID),
		consumer.WithLogger(s.logger),
	)
	defer func() {
		turn.Answer = cons.Answer()
		turn.TaskID = cons.TaskID()
		turn.MessageID = cons.MessageID()
		turn.EventCount = len(cons.Log())
		if id := cons.ConversationID(); id != "" {
			turn.ConversationID = id
		}
	}()

	var streamErr *consumer.StreamError
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, errClientGone) {
			turn.Status = storage.TurnStopped
			turn.Error = errClientGone.Error()
			s.logger.Debug("client disconnected", "task_id", cons.TaskID())
			return outcomeStopped
		}
		if err != nil {
			turn.Status = storage.TurnFailed
			turn.Error = err.Error()

			if werr := w.WriteFrame(relayErrorFrame(cons.TaskID(), err)); werr != nil {
				s.logger.Debug("client gone before relay error was sent", "error", werr)
			}
			s.logger.Warn("relay stream failed", "task_id", cons.TaskID(), "error", err)
			return outcomeFailed
		}

		if env, ok := dify.EnvelopeOf(ev); ok && env.ConversationID != "" {
			turn.ConversationID = env.ConversationID
		}

		// In-band error events are relayed as is; Dify ends the stream
		// after them.
		if herr := cons.Handle(ev); herr != nil {
			errors.As(herr, &streamErr)
		}

		frame, err := encodeEvent(ev)
		if err != nil {
			s.logger.Error("encoding relayed event", "type", ev.Type(), "error", err)
			continue
		}
		if err := w.WriteFrame(frame); err != nil {
			turn.Status = storage.TurnStopped
			turn.Error = errClientGone.Error()
			s.logger.Debug("client disconnected", "task_id", cons.TaskID(), "error", err)
			return outcomeStopped
		}
		s.metrics.streamEvents.WithLabelValues(string(ev.Type())).Inc()
	}

	if streamErr != nil {
		turn.Status = storage.TurnFailed
		turn.Error = streamErr.Error()
		return outcomeFailed
	}
	turn.Status = storage.TurnCompleted
	return outcomeCompleted
}

// encodeEvent turns a typed event back into a frame for sse.Writer.
func encodeEvent(ev dify.Event) (sse.Frame, error) {
	if ev.Type() == dify.EventPing {
		return sse.PingFrame(), nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return sse.Frame(data), nil
}

// relayErrorFrame is the error event that ends a stream the relay could not
// finish.
func relayErrorFrame(taskID string, err error) sse.Frame {
	ev := dify.ErrorEvent{
		Event:   dify.EventError,
		TaskID:  taskID,
		Status:  fiber.StatusBadGateway,
		Code:    CodeRelayError,
		Message: err.Error(),
	}

	switch {
	case errors.Is(err, dify.ErrIdleTimeout):
		ev.Status = fiber.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		ev.Status = fiber.StatusServiceUnavailable
		ev.Message = "relay is shutting down"
	}

	data, _ := json.Marshal(ev)
	return sse.Frame(data)
}
