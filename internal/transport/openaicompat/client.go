// Package openaicompat is a transport for servers exposing the OpenAI chat
// completions API, such as Ollama and vLLM.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/transport"
)

const (
	// TransportType is the registry name of this transport.
	TransportType = "openai-compatible"

	defaultBaseURL = "http://localhost:11434"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the server root. The client appends /v1 itself.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxRetries sets how many times a failed single-shot call is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = transport.ClampRetries(n)
	}
}

// Client is an HTTP client for OpenAI-compatible chat completion servers.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

var _ ports.Transport = (*Client)(nil)

// NewClient creates a new OpenAI-compatible client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the transport type.
func (c *Client) Name() string {
	return TransportType
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *domain.InferenceRequest) (*domain.InferenceResponse, error) {
	body, err := json.Marshal(toAPIRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := transport.Do(ctx, c.httpClient, c.maxRetries, func() (*http.Request, error) {
		return c.newRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transport.ClassifyError(ctx, fmt.Errorf("failed to read response: %w", err))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewTransportError(domain.ErrorTypeDecode, "failed to unmarshal response").WithCause(err)
	}
	if len(result.Choices) == 0 {
		return nil, domain.NewTransportError(domain.ErrorTypeDecode, "response has no choices")
	}

	choice := result.Choices[0]
	return &domain.InferenceResponse{
		Text:       string(choice.Message.Content),
		StopReason: choice.FinishReason,
	}, nil
}

// Stream sends a streaming chat completion request and returns a channel
// of events.
func (c *Client) Stream(ctx context.Context, req *domain.InferenceRequest) (<-chan domain.StreamEvent, error) {
	body, err := json.Marshal(toAPIRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := transport.Do(ctx, c.httpClient, 0, func() (*http.Request, error) {
		r, err := c.newRequest(ctx, body)
		if err == nil {
			r.Header.Set("Accept", "text/event-stream")
		}
		return r, err
	})
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamEvent)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- domain.StreamEvent) {
	defer close(out)
	defer body.Close()

	started := false
	err := transport.ScanSSE(body, func(data string) (bool, error) {
		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return false, domain.NewTransportError(domain.ErrorTypeMalformedStream, "failed to unmarshal chunk").WithCause(err)
		}
		if chunk.Error != nil {
			return false, domain.NewTransportError(domain.ErrorTypeUpstream, chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			return false, nil
		}

		choice := chunk.Choices[0]
		if !started && choice.Delta.Role != "" {
			started = true
			if !transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeStart}) {
				return false, ctx.Err()
			}
		}

		if choice.Delta.Content != "" {
			ev := domain.StreamEvent{
				Type:      domain.EventTypeContentDelta,
				DeltaType: domain.DeltaTypeText,
				Delta:     choice.Delta.Content,
			}
			if !transport.Emit(ctx, out, ev) {
				return false, ctx.Err()
			}
		}
		if len(choice.Delta.ToolCalls) > 0 {
			ev := domain.StreamEvent{
				Type:      domain.EventTypeContentDelta,
				DeltaType: "tool_call",
				Delta:     string(choice.Delta.ToolCalls[0]),
			}
			if !transport.Emit(ctx, out, ev) {
				return false, ctx.Err()
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeDone, StopReason: *choice.FinishReason})
			return true, nil
		}
		return false, nil
	})

	if err != nil {
		transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeError, Error: transport.ClassifyError(ctx, err)})
	}
}

func (c *Client) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", transport.UserAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// toAPIRequest converts an inference request to an OpenAI API request.
func toAPIRequest(req *domain.InferenceRequest, stream bool) *ChatCompletionRequest {
	messages := make([]ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	apiReq := &ChatCompletionRequest{
		Model:     req.ModelID,
		Messages:  messages,
		MaxTokens: req.Sampling.MaxTokens,
		Stream:    stream,
	}

	if req.Sampling.Temperature > 0 {
		t := req.Sampling.Temperature
		apiReq.Temperature = &t
	}
	if req.Sampling.TopP > 0 {
		p := req.Sampling.TopP
		apiReq.TopP = &p
	}

	return apiReq
}
