package dify

// ChatRequest is the caller-controlled part of a chat-messages call. The
// response mode is fixed by the method used.
type ChatRequest struct {
	Inputs           map[string]any `json:"inputs"`
	Query            string         `json:"query"`
	Files            []InputFile    `json:"files,omitempty"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	User             string         `json:"user"`
	AutoGenerateName *bool          `json:"auto_generate_name,omitempty"`
}

// InputFile references an image or document attached to a query, either by
// remote URL or by the id returned from UploadFile.
type InputFile struct {
	Type           string `json:"type"`
	TransferMethod string `json:"transfer_method"`
	URL            string `json:"url,omitempty"`
	UploadFileID   string `json:"upload_file_id,omitempty"`
}

const (
	responseModeBlocking  = "blocking"
	responseModeStreaming = "streaming"
)

type chatPayload struct {
	ChatRequest
	ResponseMode string `json:"response_mode"`
}

func newChatPayload(req ChatRequest, mode string) chatPayload {
	if req.Inputs == nil {
		req.Inputs = map[string]any{}
	}
	return chatPayload{ChatRequest: req, ResponseMode: mode}
}

// ChatCompletion is the single response body of a blocking chat-messages call.
type ChatCompletion struct {
	Event          string          `json:"event"`
	TaskID         string          `json:"task_id"`
	ID             string          `json:"id"`
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Mode           string          `json:"mode"`
	Answer         string          `json:"answer"`
	Metadata       MessageMetadata `json:"metadata"`
	CreatedAt      int64           `json:"created_at"`
}

// StopResult is returned by StopChatMessage.
type StopResult struct {
	Result string `json:"result"`
}

// FilePreview is a downloaded file with the name Dify advertised for it.
type FilePreview struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadedFile is the metadata Dify returns for an uploaded file.
type UploadedFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}
