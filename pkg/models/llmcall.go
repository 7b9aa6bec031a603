package models

import "time"

// CallType classifies the purpose of an LLMCall, mirroring spec §3.
type CallType string

const (
	CallTypeChat             CallType = "chat"
	CallTypeRAGQuery         CallType = "rag_query"
	CallTypeRAGSynthesis     CallType = "rag_synthesis"
	CallTypeSentiment        CallType = "sentiment_analysis"
	CallTypeSummarization    CallType = "summarization"
	CallTypeEmbedding        CallType = "embedding"
	CallTypeClassification   CallType = "classification"
	CallTypeExtraction       CallType = "extraction"
	CallTypeSystem           CallType = "system"
	CallTypeOther            CallType = "other"
)

// CallStatus is the lifecycle status of an LLMCall.
type CallStatus string

const (
	CallStatusPending   CallStatus = "pending"
	CallStatusSuccess   CallStatus = "success"
	CallStatusError     CallStatus = "error"
	CallStatusCancelled CallStatus = "cancelled"
)

// LLMMessage is one message in the conversation sent to/received from the model.
type LLMMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []map[string]any `json:"tool_calls,omitempty"`
}

// LLMCall is a structured, trace-linked log row for one outbound model
// invocation — visible or hidden, per spec §4.3.
type LLMCall struct {
	ID     string
	Type   CallType
	Status CallStatus

	Provider string
	Model    string

	Messages     []LLMMessage
	SystemPrompt *string
	Tools        []map[string]any
	ToolChoice   *string

	ResponseMessage *LLMMessage
	FinishReason    *string

	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	EstimatedCost    *float64
	LatencyMs        *int64

	StartedAt   time.Time
	CompletedAt *time.Time

	// Contextual keys
	UserID       string
	SessionID    string
	TaskID       string
	CompanyID    string
	ReviewID     string
	TraceID      string
	ParentCallID *string
	Metadata     map[string]any
	Tags         []string

	ErrorMessage *string
}

// StartLLMCallRequest starts a pending LLMCall row.
type StartLLMCallRequest struct {
	Type         CallType
	Provider     string
	Model        string
	Messages     []LLMMessage
	SystemPrompt *string
	Tools        []map[string]any
	ToolChoice   *string

	UserID       string
	SessionID    string
	TaskID       string
	CompanyID    string
	ReviewID     string
	TraceID      string
	ParentCallID *string
	Metadata     map[string]any
	Tags         []string
}
