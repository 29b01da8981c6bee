package domain

// Message is a chat message sent to an inference backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingParams controls generation on the backend.
type SamplingParams struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
}

// InferenceRequest is the backend-neutral request handed to a transport.
type InferenceRequest struct {
	ModelID  string         `json:"model_id"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Sampling SamplingParams `json:"sampling_params"`
}

// InferenceResponse is a complete single-shot reply. Text has already been
// normalized from whatever content shape the backend returned.
type InferenceResponse struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
}

// StreamEventType identifies the type of streaming event.
type StreamEventType string

const (
	EventTypeStart        StreamEventType = "start"
	EventTypeContentDelta StreamEventType = "content_delta"
	EventTypeDone         StreamEventType = "done"
	EventTypeError        StreamEventType = "error"
)

// DeltaTypeText marks a delta carrying plain text. Other delta types (tool
// calls, images) are passed through but never accumulated.
const DeltaTypeText = "text"

// StreamEvent represents one event of a streamed reply.
type StreamEvent struct {
	Type StreamEventType

	// DeltaType is the content kind of Delta; only DeltaTypeText is text.
	DeltaType string

	// Delta carries the fragment payload for content delta events.
	Delta string

	// StopReason is set on done events when the backend reports one.
	StopReason string

	// Error is set for error events. The stream ends after an error.
	Error error
}

// IsText reports whether the event carries a text fragment.
func (e StreamEvent) IsText() bool {
	return e.Type == EventTypeContentDelta && e.DeltaType == DeltaTypeText && e.Delta != ""
}
