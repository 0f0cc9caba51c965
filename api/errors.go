package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/relay/pkg/dify"
)

// statusFor maps a failed upstream call to the status and body the client sees.
func statusFor(err error) (int, ErrorResponse) {
	var (
		cfgErr *dify.ConfigError
		apiErr *dify.APIError
	)

	switch {
	case errors.As(err, &cfgErr):
		return fiber.StatusInternalServerError, ErrorResponse{Error: cfgErr.Error(), Code: CodeNotConfigured}

	case errors.As(err, &apiErr):
		return fiber.StatusBadGateway, ErrorResponse{Error: apiErr.Error(), Code: CodeUpstream}

	case errors.Is(err, dify.ErrNoResponseBody):
		return fiber.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: CodeUpstream}

	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, ErrorResponse{Error: "upstream request timed out", Code: CodeUpstream}

	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable, ErrorResponse{Error: "relay is shutting down", Code: CodeInternal}

	default:
		return fiber.StatusBadGateway, ErrorResponse{Error: "upstream request failed", Code: CodeUpstream}
	}
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status, body := statusFor(err)

	log := s.logger.Warn
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		log = s.logger.Error
	}
	log("rpc call failed",
		"path", c.Path(),
		"status", status,
		"error", err,
	)

	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg, Code: CodeBadRequest})
}
