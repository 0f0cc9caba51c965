// Package header sets the response headers of the relay RPC surface.
//
// The relay sits between a client and the Dify API like so:
//
//	Client <--> Relay <--> Dify
//
// and each leg negotiates its own headers: the relay never copies Dify's
// response headers through, it states its own.
package header

import (
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-Id"

// Handler manages headers on relay responses.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// streamHeaders are set on every event-stream response.
var streamHeaders = map[string]string{
	fiber.HeaderContentType:  "text/event-stream",
	fiber.HeaderCacheControl: "no-cache",

	// Reverse proxies such as nginx buffer responses by default, which
	// would hold events back until the stream ends.
	"X-Accel-Buffering": "no",
}

// RequestID returns the client's request ID, or a new one if it sent none,
// and echoes it on the response. The result stays valid after the handler
// returns.
func (h *Handler) RequestID(c *fiber.Ctx) string {
	id := strings.Clone(c.Get(RequestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(RequestIDHeader, id)
	return id
}

// SetStreamHeaders prepares c for an event-stream body.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for k, v := range streamHeaders {
		c.Set(k, v)
	}
}

// SetFileHeaders describes a downloaded file. The filename is re-encoded so
// non-ASCII names survive as RFC 2231 filename*.
func (h *Handler) SetFileHeaders(c *fiber.Ctx, name, contentType string, asAttachment bool) {
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, ContentDisposition(name, asAttachment))
}

// ContentDisposition formats an inline or attachment disposition for name.
func ContentDisposition(name string, asAttachment bool) string {
	disposition := "inline"
	if asAttachment {
		disposition = "attachment"
	}

	if name == "" {
		return disposition
	}

	if v := mime.FormatMediaType(disposition, map[string]string{"filename": name}); v != "" {
		return v
	}
	return disposition
}
