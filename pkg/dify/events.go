package dify

// EventType is the "event" discriminant of a streamed Dify frame.
type EventType string

const (
	EventMessage            EventType = "message"
	EventAgentMessage       EventType = "agent_message"
	EventAgentThought       EventType = "agent_thought"
	EventMessageFile        EventType = "message_file"
	EventMessageEnd         EventType = "message_end"
	EventMessageReplace     EventType = "message_replace"
	EventTTSMessage         EventType = "tts_message"
	EventTTSMessageEnd      EventType = "tts_message_end"
	EventError              EventType = "error"
	EventWorkflowStarted    EventType = "workflow_started"
	EventWorkflowFinished   EventType = "workflow_finished"
	EventNodeStarted        EventType = "node_started"
	EventNodeFinished       EventType = "node_finished"
	EventNodeRetry          EventType = "node_retry"
	EventIterationStarted   EventType = "iteration_started"
	EventIterationNext      EventType = "iteration_next"
	EventIterationCompleted EventType = "iteration_completed"
	EventLoopStarted        EventType = "loop_started"
	EventLoopNext           EventType = "loop_next"
	EventLoopCompleted      EventType = "loop_completed"
	EventTextChunk          EventType = "text_chunk"
	EventTextReplace        EventType = "text_replace"
	EventAgentLog           EventType = "agent_log"
	EventPing               EventType = "ping"
)

// Event is one validated frame of a chat-messages stream. The concrete type
// is always a pointer to one of the structs in this file.
type Event interface {
	Type() EventType
}

// Envelope holds the identifiers shared by every event except error and ping.
type Envelope struct {
	Event          EventType `json:"event" validate:"required"`
	TaskID         string    `json:"task_id" validate:"required"`
	ConversationID string    `json:"conversation_id" validate:"required"`
	MessageID      string    `json:"message_id" validate:"required"`
	CreatedAt      int64     `json:"created_at" validate:"required"`
}

func (e *Envelope) Type() EventType { return e.Event }

func (e *Envelope) envelope() *Envelope { return e }

// EnvelopeOf returns the envelope of ev, or false for error and ping events.
func EnvelopeOf(ev Event) (Envelope, bool) {
	if h, ok := ev.(interface{ envelope() *Envelope }); ok {
		return *h.envelope(), true
	}
	return Envelope{}, false
}

// Message is a chunk of a chat app answer.
type Message struct {
	Envelope
	ID     string `json:"id,omitempty"`
	Answer string `json:"answer"`

	FromVariableSelector []string `json:"from_variable_selector,omitempty"`
}

// AgentMessage is a chunk of an agent app answer.
type AgentMessage struct {
	Envelope
	ID     string `json:"id,omitempty"`
	Answer string `json:"answer"`
}

// AgentThought is one reasoning step of an agent, including tool calls.
type AgentThought struct {
	Envelope
	ID           string   `json:"id" validate:"required"`
	Position     int      `json:"position"`
	Thought      string   `json:"thought"`
	Observation  string   `json:"observation"`
	Tool         string   `json:"tool"`
	ToolInput    string   `json:"tool_input"`
	MessageFiles []string `json:"message_files,omitempty"`
}

// MessageFile announces a file produced by a tool.
type MessageFile struct {
	Envelope
	ID        string `json:"id" validate:"required"`
	FileType  string `json:"type"`
	BelongsTo string `json:"belongs_to"`
	URL       string `json:"url"`
}

// MessageEnd closes a message stream.
type MessageEnd struct {
	Envelope
	ID       string          `json:"id,omitempty"`
	Metadata MessageMetadata `json:"metadata"`
}

// MessageMetadata carries usage and retrieval citations.
type MessageMetadata struct {
	Usage              *Usage              `json:"usage,omitempty"`
	RetrieverResources []RetrieverResource `json:"retriever_resources,omitempty"`
}

// Usage is the model token accounting for one answer.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	TotalPrice       string  `json:"total_price,omitempty"`
	Currency         string  `json:"currency,omitempty"`
	Latency          float64 `json:"latency,omitempty"`
}

// RetrieverResource is a knowledge base segment cited by an answer.
type RetrieverResource struct {
	Position     int     `json:"position"`
	DatasetID    string  `json:"dataset_id"`
	DatasetName  string  `json:"dataset_name"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	SegmentID    string  `json:"segment_id"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

// MessageReplace replaces the whole answer accumulated so far, typically
// after output moderation.
type MessageReplace struct {
	Envelope
	Answer string `json:"answer"`
}

// TTSMessage is a base64 encoded mp3 audio chunk.
type TTSMessage struct {
	Envelope
	Audio string `json:"audio"`
}

// TTSMessageEnd ends the audio stream.
type TTSMessageEnd struct {
	Envelope
	Audio string `json:"audio"`
}

// ErrorEvent is an in-band failure reported by Dify mid-stream.
type ErrorEvent struct {
	Event     EventType `json:"event" validate:"required"`
	TaskID    string    `json:"task_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Status    int       `json:"status,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message" validate:"required"`
}

func (e *ErrorEvent) Type() EventType { return e.Event }

// WorkflowRun describes a workflow execution.
type WorkflowRun struct {
	ID             string         `json:"id" validate:"required"`
	WorkflowID     string         `json:"workflow_id"`
	SequenceNumber int            `json:"sequence_number,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	Outputs        map[string]any `json:"outputs,omitempty"`
	Status         string         `json:"status,omitempty"`
	Error          string         `json:"error,omitempty"`
	ElapsedTime    float64        `json:"elapsed_time,omitempty"`
	TotalTokens    int            `json:"total_tokens,omitempty"`
	TotalSteps     int            `json:"total_steps,omitempty"`
	CreatedAt      int64          `json:"created_at,omitempty"`
	FinishedAt     int64          `json:"finished_at,omitempty"`
}

type WorkflowStarted struct {
	Envelope
	WorkflowRunID string      `json:"workflow_run_id" validate:"required"`
	Data          WorkflowRun `json:"data"`
}

type WorkflowFinished struct {
	Envelope
	WorkflowRunID string      `json:"workflow_run_id" validate:"required"`
	Data          WorkflowRun `json:"data"`
}

// NodeExecution describes one node of a workflow run.
type NodeExecution struct {
	ID                string         `json:"id" validate:"required"`
	NodeID            string         `json:"node_id" validate:"required"`
	NodeType          string         `json:"node_type"`
	Title             string         `json:"title"`
	Index             int            `json:"index"`
	PredecessorNodeID string         `json:"predecessor_node_id,omitempty"`
	Inputs            map[string]any `json:"inputs,omitempty"`
	ProcessData       map[string]any `json:"process_data,omitempty"`
	Outputs           map[string]any `json:"outputs,omitempty"`
	Status            string         `json:"status,omitempty"`
	Error             string         `json:"error,omitempty"`
	ElapsedTime       float64        `json:"elapsed_time,omitempty"`
	ExecutionMetadata map[string]any `json:"execution_metadata,omitempty"`
	RetryIndex        int            `json:"retry_index,omitempty"`
	IterationID       string         `json:"iteration_id,omitempty"`
	LoopID            string         `json:"loop_id,omitempty"`
	CreatedAt         int64          `json:"created_at,omitempty"`
	FinishedAt        int64          `json:"finished_at,omitempty"`
}

type NodeStarted struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          NodeExecution `json:"data"`
}

type NodeFinished struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          NodeExecution `json:"data"`
}

type NodeRetry struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          NodeExecution `json:"data"`
}

// ContainerStep describes an iteration or loop node and its progress.
type ContainerStep struct {
	ID                string         `json:"id" validate:"required"`
	NodeID            string         `json:"node_id" validate:"required"`
	NodeType          string         `json:"node_type"`
	Title             string         `json:"title"`
	Index             int            `json:"index,omitempty"`
	Inputs            map[string]any `json:"inputs,omitempty"`
	Outputs           map[string]any `json:"outputs,omitempty"`
	Status            string         `json:"status,omitempty"`
	Error             string         `json:"error,omitempty"`
	ElapsedTime       float64        `json:"elapsed_time,omitempty"`
	TotalTokens       int            `json:"total_tokens,omitempty"`
	Steps             int            `json:"steps,omitempty"`
	ExecutionMetadata map[string]any `json:"execution_metadata,omitempty"`
	CreatedAt         int64          `json:"created_at,omitempty"`
	FinishedAt        int64          `json:"finished_at,omitempty"`
}

type IterationStarted struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

type IterationNext struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

type IterationCompleted struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

type LoopStarted struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

type LoopNext struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

type LoopCompleted struct {
	Envelope
	WorkflowRunID string        `json:"workflow_run_id" validate:"required"`
	Data          ContainerStep `json:"data"`
}

// TextChunk is streamed text output of a workflow answer node.
type TextChunk struct {
	Envelope
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
	Data          struct {
		Text                 string   `json:"text"`
		FromVariableSelector []string `json:"from_variable_selector,omitempty"`
	} `json:"data"`
}

// TextReplace replaces the text streamed so far by a workflow.
type TextReplace struct {
	Envelope
	WorkflowRunID string `json:"workflow_run_id,omitempty"`
	Data          struct {
		Text string `json:"text"`
	} `json:"data"`
}

// AgentLog is a structured log line from an agent node.
type AgentLog struct {
	Envelope
	Data struct {
		ID              string         `json:"id" validate:"required"`
		NodeExecutionID string         `json:"node_execution_id"`
		NodeID          string         `json:"node_id"`
		Label           string         `json:"label"`
		ParentID        string         `json:"parent_id,omitempty"`
		Status          string         `json:"status"`
		Error           string         `json:"error,omitempty"`
		Data            map[string]any `json:"data,omitempty"`
		Metadata        map[string]any `json:"metadata,omitempty"`
	} `json:"data"`
}

// Ping is the keep-alive Dify sends every few seconds.
type Ping struct {
	Event EventType `json:"event"`
}

func (p *Ping) Type() EventType { return EventPing }
