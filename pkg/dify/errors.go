package dify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidEvent is wrapped by every frame that does not match a known
	// event shape.
	ErrInvalidEvent = errors.New("invalid dify event")

	// ErrNoResponseBody is returned when a successful streaming response
	// carries no body to read from.
	ErrNoResponseBody = errors.New("no response body")

	// ErrIdleTimeout is the cancellation cause when the upstream stops sending
	// bytes for longer than Config.IdleTimeout.
	ErrIdleTimeout = errors.New("dify stream idle timeout")
)

// APIError is a non-2xx response from the Dify API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Dify API error (%d): %s", e.StatusCode, e.Body)
}

// ConfigError reports required client settings that are missing.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "dify client is not configured: missing " + strings.Join(e.Missing, ", ")
}
