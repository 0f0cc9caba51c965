package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/relay/api/worker"
	"github.com/papercomputeco/relay/pkg/storage"
)

// handlePing handles GET /ping for health checks.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// decodeBody unmarshals and validates a JSON request body.
func (s *Server) decodeBody(c *fiber.Ctx, out any) error {
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(out); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// requestContext scopes a blocking upstream call to one request. It ends on
// server shutdown, after RequestTimeout, or when the request's user context
// is cancelled. The caller must call the returned cancel func.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.RequestTimeout)
	stop := context.AfterFunc(c.UserContext(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// handleChatMessages handles POST /rpc/chatMessages, a blocking chat call.
func (s *Server) handleChatMessages(c *fiber.Ctx) error {
	var req ChatMessagesRequest
	if err := s.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	user := userFrom(c)
	s.headers.RequestID(c)
	turn := newTurn(user, req, false)

	ctx, cancel := s.requestContext(c)
	defer cancel()

	out, err := s.dify.ChatMessages(ctx, req.toDify(user))
	if err != nil {
		turn.Status = storage.TurnFailed
		turn.Error = err.Error()
		s.finishTurn(turn, RouteChatMessages)
		return s.writeError(c, err)
	}

	turn.Status = storage.TurnCompleted
	turn.Answer = out.Answer
	turn.TaskID = out.TaskID
	turn.MessageID = out.MessageID
	if out.ConversationID != "" {
		turn.ConversationID = out.ConversationID
	}
	turn.EventCount = 1
	s.finishTurn(turn, RouteChatMessages)

	return c.JSON(out)
}

// handleChatMessagesStop handles POST /rpc/chatMessagesStop. Stopping is
// cooperative: Dify ends the stream, it is not cut by the relay.
func (s *Server) handleChatMessagesStop(c *fiber.Ctx) error {
	var req StopRequest
	if err := s.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	out, err := s.dify.StopChatMessage(ctx, req.TaskID, userFrom(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(out)
}

// handleFilePreview handles POST /rpc/filePreview, returning the file body.
func (s *Server) handleFilePreview(c *fiber.Ctx) error {
	var req FilePreviewRequest
	if err := s.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	out, err := s.dify.FilePreview(ctx, req.FileID, userFrom(c), req.AsAttachment)
	if err != nil {
		return s.writeError(c, err)
	}

	s.headers.SetFileHeaders(c, out.Name, out.ContentType, req.AsAttachment)
	return c.Send(out.Data)
}

// handleFileUpload handles POST /rpc/fileUpload with a multipart "file" part.
func (s *Server) handleFileUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, fmt.Sprintf("reading upload: %v", err))
	}
	defer f.Close()

	ctx, cancel := s.requestContext(c)
	defer cancel()

	out, err := s.dify.UploadFile(ctx, userFrom(c), fh.Filename, f)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(out)
}

// handleTurns handles POST /rpc/turns, listing the caller's stored turns.
func (s *Server) handleTurns(c *fiber.Ctx) error {
	var req TurnsRequest
	if err := s.decodeBody(c, &req); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	turns, err := s.driver.ListByConversation(ctx, userFrom(c), req.ConversationID)
	if err != nil {
		s.logger.Error("listing turns failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not list turns", Code: CodeInternal})
	}
	return c.JSON(TurnsResponse{Turns: turns})
}

func newTurn(user string, req ChatMessagesRequest, streaming bool) *storage.Turn {
	return &storage.Turn{
		ID:             uuid.NewString(),
		User:           user,
		ConversationID: req.ConversationID,
		Query:          req.Query,
		Streaming:      streaming,
		StartedAt:      time.Now().UTC(),
	}
}

// finishTurn stamps the turn and hands it to the worker pool.
func (s *Server) finishTurn(turn *storage.Turn, route string) {
	turn.CompletedAt = time.Now().UTC()
	if !s.pool.Enqueue(worker.Job{Turn: turn, Path: route}) {
		s.metrics.droppedTurns.Inc()
	}
}
