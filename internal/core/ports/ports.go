// Package ports defines the interfaces between the advisor core and its
// external collaborators.
package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

// Transport submits prompts to an inference backend.
// Implementations: Llama Stack, OpenAI-compatible (Ollama, vLLM).
type Transport interface {
	// Name returns the transport type identifier.
	Name() string

	// Complete performs a single request/response round trip.
	Complete(ctx context.Context, req *domain.InferenceRequest) (*domain.InferenceResponse, error)

	// Stream starts a streamed reply. The channel is closed when the stream
	// ends; an event with Type EventTypeError is always the last one sent.
	// A reply cut off before the backend's terminal marker ends with an
	// ErrorTypeMalformedStream error event.
	Stream(ctx context.Context, req *domain.InferenceRequest) (<-chan domain.StreamEvent, error)
}

// AgentInvoker posts a free-text message to an agent endpoint.
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, agentID, message string) error
}

// MetricsRecorder receives a timing sample after every recommendation.
type MetricsRecorder interface {
	Record(m domain.Metric)
}

// Journal persists recommendations for later inspection.
// Implementations: SQL (sqlite, postgres), memory.
type Journal interface {
	Append(ctx context.Context, rec *JournalRecord) error
	List(ctx context.Context, opts JournalListOptions) ([]*JournalRecord, error)
	Close() error
}

// JournalRecord is one persisted recommendation together with the inputs
// and raw output that produced it.
type JournalRecord struct {
	domain.Recommendation

	// RawText is the model text the decision was extracted from.
	RawText string `json:"rawText"`

	// PromptTokens is an estimate of the prompt size.
	PromptTokens int `json:"promptTokens"`

	// Snapshot is the game state the prompt was built from.
	Snapshot domain.GameSnapshot `json:"snapshot"`
}

// JournalListOptions filters and paginates journal listings.
type JournalListOptions struct {
	Provider domain.Provider
	Since    time.Time
	Limit    int
	Offset   int
}
