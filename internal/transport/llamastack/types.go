package llamastack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChatCompletionRequest is the body of POST /v1/inference/chat-completion.
type ChatCompletionRequest struct {
	ModelID        string          `json:"model_id"`
	Messages       []Message       `json:"messages"`
	Stream         bool            `json:"stream"`
	SamplingParams *SamplingParams `json:"sampling_params,omitempty"`
}

// Message is a chat message in Llama Stack format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingParams controls generation.
type SamplingParams struct {
	Strategy  SamplingStrategy `json:"strategy"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// SamplingStrategy selects the decoding strategy.
type SamplingStrategy struct {
	Type        string   `json:"type"` // "greedy", "top_p", "top_k"
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
}

// ChatCompletionResponse is a non-streaming reply. Older servers return the
// message under "message" rather than "completion_message".
type ChatCompletionResponse struct {
	CompletionMessage *CompletionMessage `json:"completion_message,omitempty"`
	Message           *CompletionMessage `json:"message,omitempty"`
}

// Completion returns whichever message field the server populated.
func (r *ChatCompletionResponse) Completion() *CompletionMessage {
	if r.CompletionMessage != nil {
		return r.CompletionMessage
	}
	return r.Message
}

// CompletionMessage is the assistant reply.
type CompletionMessage struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	StopReason string  `json:"stop_reason,omitempty"`
}

// Content is message content normalized to plain text. On the wire it may
// be a string, a single content block, or a list of strings and blocks;
// text blocks are concatenated in order and other block types dropped.
type Content string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*c = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content(s)
	case '{':
		var block contentBlock
		if err := json.Unmarshal(data, &block); err != nil {
			return err
		}
		*c = Content(block.text())
	case '[':
		var items []Content
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		var b strings.Builder
		for _, item := range items {
			b.WriteString(string(item))
		}
		*c = Content(b.String())
	default:
		return fmt.Errorf("unsupported content shape: %s", data)
	}
	return nil
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (b contentBlock) text() string {
	if b.Type == "" || b.Type == "text" {
		return b.Text
	}
	return ""
}

// StreamChunk is one SSE data payload of a streamed reply.
type StreamChunk struct {
	Event *StreamEvent `json:"event,omitempty"`
	Error *APIError    `json:"error,omitempty"`
}

// StreamEvent is a chat completion progress event.
type StreamEvent struct {
	EventType  string `json:"event_type"` // "start", "progress", "complete"
	Delta      Delta  `json:"delta"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Delta is a streamed content fragment. Servers send either a bare string
// or a typed object such as {"type":"text","text":"..."}.
type Delta struct {
	Type string
	Text string
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Delta) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*d = Delta{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Delta{Type: "text", Text: s}
		return nil
	}

	var obj struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*d = Delta{Type: obj.Type, Text: obj.Text}
	return nil
}

// APIError is the error body returned by Llama Stack.
type APIError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *APIError) String() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}

// AgentInvokeRequest is the body of POST /v1/agents/{id}/invoke.
type AgentInvokeRequest struct {
	Message string `json:"message"`
}
