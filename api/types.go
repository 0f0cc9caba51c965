package api

import (
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/storage"
)

// Routes of the RPC surface.
const (
	RouteChatMessages       = "/rpc/chatMessages"
	RouteChatMessagesStream = "/rpc/chatMessagesStream"
	RouteChatMessagesStop   = "/rpc/chatMessagesStop"
	RouteFilePreview        = "/rpc/filePreview"
	RouteFileUpload         = "/rpc/fileUpload"
	RouteTurns              = "/rpc/turns"
)

// ChatMessagesRequest is the body of chatMessages and chatMessagesStream.
// The user is taken from the bearer token and the response mode from the
// route, so neither can be set here.
type ChatMessagesRequest struct {
	Inputs           map[string]any   `json:"inputs,omitempty"`
	Query            string           `json:"query" validate:"required"`
	Files            []dify.InputFile `json:"files,omitempty"`
	ConversationID   string           `json:"conversation_id,omitempty"`
	AutoGenerateName *bool            `json:"auto_generate_name,omitempty"`
}

// StopRequest is the body of chatMessagesStop.
type StopRequest struct {
	TaskID string `json:"task_id" validate:"required"`
}

// FilePreviewRequest is the body of filePreview.
type FilePreviewRequest struct {
	FileID       string `json:"file_id" validate:"required"`
	AsAttachment bool   `json:"as_attachment,omitempty"`
}

// TurnsRequest is the body of turns.
type TurnsRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

// TurnsResponse lists the caller's stored turns in a conversation, oldest first.
type TurnsResponse struct {
	Turns []*storage.Turn `json:"turns"`
}

// ErrorResponse is the JSON body of every failed RPC call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes carried by ErrorResponse.
const (
	CodeBadRequest    = "bad_request"
	CodeUnauthorized  = "unauthorized"
	CodeNotConfigured = "not_configured"
	CodeUpstream      = "upstream_error"
	CodeInternal      = "internal_error"

	// CodeRelayError is sent in the error event that ends a stream the relay
	// could not finish.
	CodeRelayError = "relay_error"
)

func (r ChatMessagesRequest) toDify(user string) dify.ChatRequest {
	return dify.ChatRequest{
		Inputs:           r.Inputs,
		Query:            r.Query,
		Files:            r.Files,
		ConversationID:   r.ConversationID,
		User:             user,
		AutoGenerateName: r.AutoGenerateName,
	}
}
