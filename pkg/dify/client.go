// Package dify is a client for the Dify chat-messages API. Streaming calls
// decode the upstream Server-Sent Events into typed events through pkg/sse.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/relay/pkg/logger"
)

// DefaultIdleTimeout is used by callers that do not configure one.
const DefaultIdleTimeout = 2 * time.Minute

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.dify.ai/v1".
	BaseURL string

	// APIKey is the app secret sent as a bearer token.
	APIKey string

	// IdleTimeout aborts a stream that receives no bytes for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	// HTTPClient defaults to a client without an overall timeout, since
	// streams may legitimately run for minutes.
	HTTPClient *http.Client

	Logger *slog.Logger
}

type endpoint struct {
	baseURL string
	apiKey  string
}

// Client calls the Dify API. It is safe for concurrent use; every call gets
// its own request, response and stream state.
type Client struct {
	endpoint    atomic.Pointer[endpoint]
	idleTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// New returns a Client. Missing credentials are not an error here: calls
// fail with a *ConfigError until SetCredentials supplies them.
func New(cfg Config) *Client {
	c := &Client{
		idleTimeout: cfg.IdleTimeout,
		httpClient:  cfg.HTTPClient,
		logger:      cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	c.SetCredentials(cfg.BaseURL, cfg.APIKey)
	return c
}

// SetCredentials atomically replaces the base URL and API key used by
// subsequent calls. Streams already open are unaffected.
func (c *Client) SetCredentials(baseURL, apiKey string) {
	c.endpoint.Store(&endpoint{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
	})
}

// BaseURL returns the currently configured API root.
func (c *Client) BaseURL() string {
	return c.endpoint.Load().baseURL
}

func (c *Client) resolve() (*endpoint, error) {
	ep := c.endpoint.Load()

	var missing []string
	if ep.baseURL == "" {
		missing = append(missing, "base URL")
	}
	if ep.apiKey == "" {
		missing = append(missing, "API key")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}
	return ep, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ep, err := c.resolve()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, ep.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating dify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+ep.apiKey)
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding dify request: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and turns non-2xx responses into *APIError. The caller owns
// the returned body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.logger.Debug("dify request",
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dify request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("dify returned error",
			"status", resp.StatusCode,
			"path", req.URL.Path,
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding dify response: %w", err)
	}
	return nil
}

// ChatMessages sends a blocking chat-messages call and returns the complete
// answer.
func (c *Client) ChatMessages(ctx context.Context, req ChatRequest) (*ChatCompletion, error) {
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/chat-messages", newChatPayload(req, responseModeBlocking))
	if err != nil {
		return nil, err
	}

	out := &ChatCompletion{}
	if err := c.doJSON(httpReq, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatMessagesStream opens a streaming chat-messages call. The returned
// Stream owns the response body; callers must Close it or drain it.
// Cancelling ctx aborts the upstream request.
func (c *Client) ChatMessagesStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, "/chat-messages", newChatPayload(req, responseModeStreaming))
	if err != nil {
		cancel(err)
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(httpReq)
	if err != nil {
		cancel(err)
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cancel(ErrNoResponseBody)
		return nil, ErrNoResponseBody
	}

	return NewStream(ctx, cancel, resp.Body, c.idleTimeout, c.logger), nil
}

// StopChatMessage asks Dify to stop generating the answer for taskID. Only
// the user that started the task may stop it.
func (c *Client) StopChatMessage(ctx context.Context, taskID, user string) (*StopResult, error) {
	path := "/chat-messages/" + url.PathEscape(taskID) + "/stop"
	httpReq, err := c.newJSONRequest(ctx, http.MethodPost, path, map[string]string{"user": user})
	if err != nil {
		return nil, err
	}

	out := &StopResult{}
	if err := c.doJSON(httpReq, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilePreview downloads a file previously uploaded or generated in a
// conversation.
func (c *Client) FilePreview(ctx context.Context, fileID, user string, asAttachment bool) (*FilePreview, error) {
	q := url.Values{}
	q.Set("user", user)
	q.Set("as_attachment", strconv.FormatBool(asAttachment))
	path := "/files/" + url.PathEscape(fileID) + "/preview?" + q.Encode()

	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file preview: %w", err)
	}

	return &FilePreview{
		Name:        filenameFromDisposition(resp.Header.Get("Content-Disposition"), fileID),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// filenameFromDisposition extracts the filename from a Content-Disposition
// header. mime.ParseMediaType decodes the RFC 2231 form
// filename*=UTF-8''<percent-encoded> and prefers it over filename=.
func filenameFromDisposition(header, fallback string) string {
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return fallback
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return fallback
}

// UploadFile uploads r under name for use as an InputFile in later queries.
func (c *Client) UploadFile(ctx context.Context, user, name string, r io.Reader) (*UploadedFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": name,
	}))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("buffering upload: %w", err)
	}
	if err := mw.WriteField("user", user); err != nil {
		return nil, fmt.Errorf("writing upload user: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload body: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/files/upload", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	out := &UploadedFile{}
	if err := c.doJSON(httpReq, out); err != nil {
		return nil, err
	}
	return out, nil
}
