package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/transport/openaicompat"
)

// truncatingServer cuts streamed replies off after one fragment and
// answers single-shot requests with a complete hit decision.
func truncatingServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaicompat.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `data: {"choices":[{"index":0,"delta":{"content":"Hmm, I'd stand... actually"},"finish_reason":null}]}`+"\n\n")
			return
		}
		io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"action\":\"hit\",\"reason\":\"16 vs 10 favors hitting\"}"},"finish_reason":"stop"}]}`)
	}))
}

func TestRecommend_TruncatedStreamFallsBackToSingle(t *testing.T) {
	server := truncatingServer(t)
	defer server.Close()

	var fragments []string
	o := New(Options{SupportsStreaming: true, ModelResolver: staticModels},
		WithTransport(domain.ProviderOllama, openaicompat.NewClient("", openaicompat.WithBaseURL(server.URL))))

	rec := o.Recommend(context.Background(), hardSixteen(), domain.ProviderOllama,
		WithFragmentHandler(func(s string) { fragments = append(fragments, s) }))

	assert.Equal(t, domain.PathSingle, rec.Path)
	assert.Equal(t, domain.ActionHit, rec.Action)
	assert.Equal(t, domain.ExtractionParsed, rec.Extraction)
	assert.Equal(t, "16 vs 10 favors hitting", rec.Rationale)
	assert.Nil(t, rec.TtftMs)
	// Already-delivered fragments stay delivered; the recommendation wins.
	assert.Equal(t, []string{"Hmm, I'd stand... actually"}, fragments)
}

func TestRecommend_SpanStatus(t *testing.T) {
	tests := []struct {
		name       string
		ft         *fakeTransport
		wantStatus codes.Code
		wantEvents int
	}{
		{
			name:       "stream ok",
			ft:         &fakeTransport{events: []domain.StreamEvent{textDelta(`{"action":"stand"}`)}},
			wantStatus: codes.Unset,
		},
		{
			name: "stream failed, single recovered",
			ft: &fakeTransport{
				streamErr: domain.NewTransportError(domain.ErrorTypeConnection, "refused"),
				text:      `{"action":"stand"}`,
			},
			wantStatus: codes.Unset,
			wantEvents: 1,
		},
		{
			name: "fallback",
			ft: &fakeTransport{
				streamErr:   domain.NewTransportError(domain.ErrorTypeConnection, "refused"),
				completeErr: domain.NewTransportError(domain.ErrorTypeConnection, "refused"),
			},
			wantStatus: codes.Error,
			wantEvents: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			defer tp.Shutdown(context.Background())

			o := New(Options{SupportsStreaming: true},
				WithTransport(domain.ProviderVLLM, tt.ft),
				WithTracer(tp.Tracer("advisor_test")))
			o.Recommend(context.Background(), hardSixteen(), domain.ProviderVLLM)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "advisor.Recommend", spans[0].Name())
			assert.Equal(t, tt.wantStatus, spans[0].Status().Code)
			assert.Len(t, spans[0].Events(), tt.wantEvents)
		})
	}
}
