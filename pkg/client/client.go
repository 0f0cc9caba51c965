// Package client is the Go client of the relay RPC server. Streamed answers
// are decoded by the same pipeline the relay uses on Dify's stream, so
// callers see the same typed events.
package client

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
	"strings"
	"time"

	"github.com/papercomputeco/relay/api"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Config configures a Client.
type Config struct {
	// Target is the relay server URL, e.g. "http://localhost:8080".
	Target string

	// Token is the bearer token minted by "relay token".
	Token string

	// IdleTimeout aborts a relayed stream that goes quiet for this long.
	// Zero disables it.
	IdleTimeout time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls a relay server. It is safe for concurrent use.
type Client struct {
	target      string
	token       string
	idleTimeout time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// Error is a failed RPC call as reported by the relay.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("relay error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("relay error (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// New returns a Client for cfg.Target.
func New(cfg Config) *Client {
	c := &Client{
		target:      strings.TrimRight(cfg.Target, "/"),
		token:       cfg.Token,
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
	return c
}

func (c *Client) newRequest(ctx context.Context, method, route, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.target+route, body)
	if err != nil {
		return nil, fmt.Errorf("creating relay request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and turns non-2xx responses into *Error. The caller owns the
// returned body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.logger.Debug("relay request", "method", req.Method, "route", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)

		rpcErr := &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body api.ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			rpcErr.Code = body.Code
			rpcErr.Message = body.Error
		}
		return nil, rpcErr
	}
	return resp, nil
}

// call posts in as JSON to route and decodes the JSON answer into out.
func (c *Client) call(ctx context.Context, route string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding relay request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, route, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding relay response: %w", err)
	}
	return nil
}

// Ping checks that the relay is up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/ping", "", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// ChatMessages sends a blocking chat call.
func (c *Client) ChatMessages(ctx context.Context, req api.ChatMessagesRequest) (*dify.ChatCompletion, error) {
	out := &dify.ChatCompletion{}
	if err := c.call(ctx, api.RouteChatMessages, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatMessagesStream opens a streamed chat call. The returned stream owns
// the response body; cancelling ctx or closing the stream aborts the call,
// which the relay passes on to Dify.
func (c *Client) ChatMessagesStream(ctx context.Context, req api.ChatMessagesRequest) (*dify.Stream, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	data, err := json.Marshal(req)
	if err != nil {
		cancel(err)
		return nil, fmt.Errorf("encoding relay request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, api.RouteChatMessagesStream, "application/json", bytes.NewReader(data))
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
		cancel(dify.ErrNoResponseBody)
		return nil, dify.ErrNoResponseBody
	}

	return dify.NewStream(ctx, cancel, resp.Body, c.idleTimeout, c.logger), nil
}

// StopChatMessage asks the relay to stop the task's generation.
func (c *Client) StopChatMessage(ctx context.Context, taskID string) (*dify.StopResult, error) {
	out := &dify.StopResult{}
	if err := c.call(ctx, api.RouteChatMessagesStop, api.StopRequest{TaskID: taskID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilePreview downloads a conversation file through the relay.
func (c *Client) FilePreview(ctx context.Context, fileID string, asAttachment bool) (*dify.FilePreview, error) {
	data, err := json.Marshal(api.FilePreviewRequest{FileID: fileID, AsAttachment: asAttachment})
	if err != nil {
		return nil, fmt.Errorf("encoding relay request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, api.RouteFilePreview, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file preview: %w", err)
	}

	name := fileID
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}

	return &dify.FilePreview{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        body,
	}, nil
}

// UploadFile uploads r under name through the relay.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader) (*dify.UploadedFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("creating upload part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("buffering upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing upload body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, api.RouteFileUpload, mw.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &dify.UploadedFile{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding relay response: %w", err)
	}
	return out, nil
}

// Turns lists the caller's stored turns in a conversation, oldest first.
func (c *Client) Turns(ctx context.Context, conversationID string) ([]*storage.Turn, error) {
	var out api.TurnsResponse
	if err := c.call(ctx, api.RouteTurns, api.TurnsRequest{ConversationID: conversationID}, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}
