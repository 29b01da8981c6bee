package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

func testRequest() *domain.InferenceRequest {
	return &domain.InferenceRequest{
		ModelID:  "llama3.1:8b",
		Messages: []domain.Message{{Role: "user", Content: "Player hand: 8♠ 8♦ (total 16)"}},
		Sampling: domain.SamplingParams{MaxTokens: 200, Temperature: 0.7},
	}
}

func TestClient_Complete(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"string content", `"{\"action\":\"split\",\"reason\":\"always split eights\"}"`, `{"action":"split","reason":"always split eights"}`},
		{"content parts", `[{"type":"text","text":"Split. "},{"type":"text","text":"{\"action\":\"split\"}"}]`, `Split. {"action":"split"}`},
		{"null content", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("path = %s", r.URL.Path)
				}
				var req ChatCompletionRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("decode request: %v", err)
					return
				}
				if req.Model != "llama3.1:8b" || req.MaxTokens != 200 || req.Temperature == nil || req.TopP != nil {
					t.Errorf("request = %+v", req)
				}

				fmt.Fprintf(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, tt.content)
			}))
			defer server.Close()

			c := NewClient("", WithBaseURL(server.URL))
			resp, err := c.Complete(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Text != tt.want {
				t.Errorf("Text = %q, want %q", resp.Text, tt.want)
			}
			if resp.StopReason != "stop" {
				t.Errorf("StopReason = %q", resp.StopReason)
			}
		})
	}
}

func TestClient_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	c := NewClient("", WithBaseURL(server.URL))
	_, err := c.Complete(context.Background(), testRequest())

	var te *domain.TransportError
	if !errors.As(err, &te) || te.Type != domain.ErrorTypeDecode {
		t.Errorf("error = %v, want decode error", err)
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient("", WithBaseURL(server.URL), WithMaxRetries(1))
	_, err := c.Complete(ctx, testRequest())

	var te *domain.TransportError
	if !errors.As(err, &te) || te.Type != domain.ErrorTypeTimeout {
		t.Errorf("error = %v, want timeout", err)
	}
}

func TestClient_Stream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
			`{"choices":[{"index":0,"delta":{"content":"Stand on 20. "},"finish_reason":null}]}`,
			`{"choices":[{"index":0,"delta":{"content":"{\"action\":\"stand\"}"},"finish_reason":null}]}`,
			`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	c := NewClient("key", WithBaseURL(server.URL))
	ch, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var b strings.Builder
	var types []domain.StreamEventType
	for ev := range ch {
		types = append(types, ev.Type)
		if ev.IsText() {
			b.WriteString(ev.Delta)
		}
	}

	if b.String() != `Stand on 20. {"action":"stand"}` {
		t.Errorf("text = %q", b.String())
	}
	want := []domain.StreamEventType{
		domain.EventTypeStart,
		domain.EventTypeContentDelta,
		domain.EventTypeContentDelta,
		domain.EventTypeDone,
	}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Errorf("event types = %v, want %v", types, want)
	}
}

func TestClient_Stream_ErrorChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"error\":{\"message\":\"model crashed\",\"type\":\"server_error\"}}\n\n")
	}))
	defer server.Close()

	c := NewClient("", WithBaseURL(server.URL))
	ch, err := c.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var last domain.StreamEvent
	for ev := range ch {
		last = ev
	}
	if last.Type != domain.EventTypeError || !strings.Contains(last.Error.Error(), "model crashed") {
		t.Errorf("last event = %+v", last)
	}
}

func TestClient_Stream_Termination(t *testing.T) {
	tests := []struct {
		name      string
		chunks    []string
		wantError bool
	}{
		{
			name:   "finish reason without done sentinel",
			chunks: []string{`{"choices":[{"index":0,"delta":{"content":"Stand."},"finish_reason":null}]}`, `{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`},
		},
		{
			name:   "done sentinel without finish reason",
			chunks: []string{`{"choices":[{"index":0,"delta":{"content":"Stand."},"finish_reason":null}]}`, "[DONE]"},
		},
		{
			name:      "truncated",
			chunks:    []string{`{"choices":[{"index":0,"delta":{"content":"Hmm, I'd stand... actually"},"finish_reason":null}]}`},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, chunk := range tt.chunks {
					fmt.Fprintf(w, "data: %s\n\n", chunk)
				}
			}))
			defer server.Close()

			c := NewClient("", WithBaseURL(server.URL))
			ch, err := c.Stream(context.Background(), testRequest())
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}

			var last domain.StreamEvent
			for ev := range ch {
				last = ev
			}

			var te *domain.TransportError
			gotError := last.Type == domain.EventTypeError
			if gotError != tt.wantError {
				t.Fatalf("last event = %+v, wantError %v", last, tt.wantError)
			}
			if gotError && (!errors.As(last.Error, &te) || te.Type != domain.ErrorTypeMalformedStream) {
				t.Errorf("error = %v, want malformed_stream", last.Error)
			}
		})
	}
}
