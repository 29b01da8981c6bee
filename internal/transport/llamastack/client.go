// Package llamastack is a transport for the Llama Stack inference API.
package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/transport"
)

const (
	// TransportType is the registry name of this transport.
	TransportType = "llamastack"

	defaultBaseURL = "http://localhost:8321"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the server root. The client appends its own /v1 paths.
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
// Values above transport.MaxRetries are clamped.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = transport.ClampRetries(n)
	}
}

// Client talks to a Llama Stack server.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

var (
	_ ports.Transport    = (*Client)(nil)
	_ ports.AgentInvoker = (*Client)(nil)
)

// NewClient creates a new Llama Stack client.
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

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *domain.InferenceRequest) (*domain.InferenceResponse, error) {
	body, err := json.Marshal(toAPIRequest(req, false))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := transport.Do(ctx, c.httpClient, c.maxRetries, func() (*http.Request, error) {
		return c.newRequest(ctx, "/v1/inference/chat-completion", body)
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

	msg := result.Completion()
	if msg == nil {
		return nil, domain.NewTransportError(domain.ErrorTypeDecode, "response has no completion message")
	}

	return &domain.InferenceResponse{
		Text:       string(msg.Content),
		StopReason: msg.StopReason,
	}, nil
}

// Stream sends a streaming chat completion request. Streams are never
// retried; a failure surfaces as the final error event.
func (c *Client) Stream(ctx context.Context, req *domain.InferenceRequest) (<-chan domain.StreamEvent, error) {
	body, err := json.Marshal(toAPIRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := transport.Do(ctx, c.httpClient, 0, func() (*http.Request, error) {
		r, err := c.newRequest(ctx, "/v1/inference/chat-completion", body)
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

	err := transport.ScanSSE(body, func(data string) (bool, error) {
		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return false, domain.NewTransportError(domain.ErrorTypeMalformedStream, "failed to unmarshal chunk").WithCause(err)
		}
		if chunk.Error != nil {
			return false, domain.NewTransportError(domain.ErrorTypeUpstream, chunk.Error.String())
		}
		if chunk.Event == nil {
			return false, domain.NewTransportError(domain.ErrorTypeMalformedStream, "chunk has no event: "+data)
		}

		ev := chunk.Event
		switch ev.EventType {
		case "start":
			if !transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeStart}) {
				return false, ctx.Err()
			}
		case "progress", "complete":
			if ev.Delta.Type != "" || ev.Delta.Text != "" {
				delta := domain.StreamEvent{
					Type:      domain.EventTypeContentDelta,
					DeltaType: ev.Delta.Type,
					Delta:     ev.Delta.Text,
				}
				if !transport.Emit(ctx, out, delta) {
					return false, ctx.Err()
				}
			}
			if ev.EventType == "complete" {
				transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeDone, StopReason: ev.StopReason})
				return true, nil
			}
		}
		return false, nil
	})

	if err != nil {
		transport.Emit(ctx, out, domain.StreamEvent{Type: domain.EventTypeError, Error: transport.ClassifyError(ctx, err)})
	}
}

// InvokeAgent posts a free-text message to an agent.
func (c *Client) InvokeAgent(ctx context.Context, agentID, message string) error {
	body, err := json.Marshal(AgentInvokeRequest{Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	path := "/v1/agents/" + url.PathEscape(agentID) + "/invoke"
	resp, err := transport.Do(ctx, c.httpClient, c.maxRetries, func() (*http.Request, error) {
		return c.newRequest(ctx, path, body)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
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

// toAPIRequest converts an inference request to Llama Stack format.
func toAPIRequest(req *domain.InferenceRequest, stream bool) *ChatCompletionRequest {
	messages := make([]Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = Message{Role: m.Role, Content: m.Content}
	}

	apiReq := &ChatCompletionRequest{
		ModelID:  req.ModelID,
		Messages: messages,
		Stream:   stream,
	}

	sp := req.Sampling
	if sp.MaxTokens > 0 || sp.Temperature > 0 || sp.TopP > 0 {
		params := &SamplingParams{
			Strategy:  SamplingStrategy{Type: "greedy"},
			MaxTokens: sp.MaxTokens,
		}
		if sp.Temperature > 0 || sp.TopP > 0 {
			params.Strategy.Type = "top_p"
			if sp.Temperature > 0 {
				params.Strategy.Temperature = &sp.Temperature
			}
			if sp.TopP > 0 {
				params.Strategy.TopP = &sp.TopP
			}
		}
		apiReq.SamplingParams = params
	}

	return apiReq
}
