// Package advisor turns a game snapshot into a move recommendation by
// prompting an inference backend and extracting a decision from its reply.
//
// A call never fails. The streaming path is tried first when the provider
// supports it, then a single-shot request, then FallbackText. Whatever text
// results goes through decision.Extract, and the timing sample is recorded
// before the Recommendation is returned.
package advisor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/decision"
	"github.com/tjfontaine/blackjack-advisor/internal/prompt"
	"github.com/tjfontaine/blackjack-advisor/internal/tokens"
	"github.com/tjfontaine/blackjack-advisor/internal/transport"
)

// FallbackText stands in for the model reply when every transport attempt
// fails. It parses to "hit".
const FallbackText = `{"action":"hit","reason":"Unable to connect to AI. Basic strategy suggests hitting on 16 vs dealer 10."}`

const (
	tracerName     = "github.com/tjfontaine/blackjack-advisor/internal/advisor"
	journalTimeout = 5 * time.Second
)

// Orchestrator produces recommendations. It is safe for concurrent use.
type Orchestrator struct {
	defaults   Options
	options    map[domain.Provider]Options
	transports map[domain.Provider]ports.Transport
	metrics    ports.MetricsRecorder
	journal    ports.Journal
	tokens     *tokens.Counter
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// New creates an orchestrator. defaults applies to every provider without
// a WithProviderOptions override.
func New(defaults Options, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		defaults:   defaults,
		options:    make(map[domain.Provider]Options),
		transports: make(map[domain.Provider]ports.Transport),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// Options returns the effective options for p.
func (o *Orchestrator) Options(p domain.Provider) Options {
	if opts, ok := o.options[p]; ok {
		return opts
	}
	return o.defaults
}

// Recommend asks provider for the next move on snapshot. It always returns a
// complete Recommendation; transport failures and timeouts degrade to
// FallbackText and unparseable replies resolve to ActionUnknown.
func (o *Orchestrator) Recommend(ctx context.Context, snapshot domain.GameSnapshot, provider domain.Provider, opts ...CallOption) domain.Recommendation {
	var call callConfig
	for _, opt := range opts {
		opt(&call)
	}

	snap := snapshot.Clone()
	cfg := o.Options(provider)
	model := cfg.model(provider)

	ctx, span := o.tracer.Start(ctx, "advisor.Recommend", trace.WithAttributes(
		attribute.String("advisor.provider", string(provider)),
		attribute.String("advisor.model", model),
	))
	defer span.End()

	p := prompt.Build(snap)
	req := &domain.InferenceRequest{
		ModelID:  model,
		Messages: p.Messages(),
		Sampling: cfg.Sampling,
	}

	start := o.now()
	text, path, ttft := o.invoke(ctx, provider, cfg, req, start, call)
	end := o.now()

	result := decision.Extract(text, snap)

	rec := domain.Recommendation{
		ID:         uuid.NewString(),
		Provider:   provider,
		ModelID:    model,
		Action:     result.Action,
		Rationale:  result.Rationale,
		LatencyMs:  millis(end.Sub(start)),
		TtftMs:     ttft,
		Path:       path,
		Extraction: result.Extraction,
		CreatedAt:  end,
	}

	if o.metrics != nil {
		o.metrics.Record(domain.MetricFrom(rec))
	}

	promptTokens := 0
	if o.tokens != nil {
		promptTokens = o.tokens.CountMessages(req.Messages)
	}
	o.appendJournal(ctx, rec, text, promptTokens, snap)

	span.SetAttributes(
		attribute.String("advisor.action", string(rec.Action)),
		attribute.String("advisor.path", string(rec.Path)),
		attribute.String("advisor.extraction", string(rec.Extraction)),
		attribute.Float64("advisor.latency_ms", rec.LatencyMs),
	)

	attrs := []any{
		slog.String("id", rec.ID),
		slog.String("provider", string(provider)),
		slog.String("model", model),
		slog.String("action", string(rec.Action)),
		slog.String("path", string(rec.Path)),
		slog.String("extraction", string(rec.Extraction)),
		slog.Float64("latency_ms", rec.LatencyMs),
		slog.Int("prompt_tokens", promptTokens),
	}
	if ttft != nil {
		attrs = append(attrs, slog.Float64("ttft_ms", *ttft))
	}
	o.logger.Info("recommendation", attrs...)

	return rec
}

// invoke runs the stream, single-shot, fallback chain and returns the text
// with the path that produced it. ttft is only set on the stream path.
func (o *Orchestrator) invoke(ctx context.Context, provider domain.Provider, cfg Options, req *domain.InferenceRequest, start time.Time, call callConfig) (string, domain.TransportPath, *float64) {
	span := trace.SpanFromContext(ctx)

	t, ok := o.transports[provider]
	if !ok || t == nil {
		err := domain.NewTransportError(domain.ErrorTypeNotConfigured, "no transport configured").WithProvider(provider)
		o.transportFailed(ctx, span, provider, "single", err)
		span.SetStatus(codes.Error, "fallback: "+err.Error())
		return FallbackText, domain.PathFallback, nil
	}

	if cfg.SupportsStreaming {
		text, ttft, err := o.stream(ctx, t, cfg.timeout(), req, start, call.onFragment)
		if err == nil {
			return text, domain.PathStream, ttft
		}
		o.transportFailed(ctx, span, provider, "stream", err)
	}

	text, err := o.complete(ctx, t, cfg.timeout(), req)
	if err == nil {
		return text, domain.PathSingle, nil
	}
	o.transportFailed(ctx, span, provider, "single", err)
	span.SetStatus(codes.Error, "fallback: "+classify(err).Error())
	return FallbackText, domain.PathFallback, nil
}

func (o *Orchestrator) stream(ctx context.Context, t ports.Transport, timeout time.Duration, req *domain.InferenceRequest, start time.Time, onFragment func(string)) (string, *float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sreq := *req
	sreq.Stream = true

	events, err := t.Stream(ctx, &sreq)
	if err != nil {
		return "", nil, err
	}

	var (
		buf  strings.Builder
		ttft *float64
	)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", nil, err
				}
				return buf.String(), ttft, nil
			}

			switch ev.Type {
			case domain.EventTypeError:
				if ev.Error != nil {
					return "", nil, ev.Error
				}
				return "", nil, domain.NewTransportError(domain.ErrorTypeMalformedStream, "stream error")
			case domain.EventTypeContentDelta:
				if !ev.IsText() {
					continue
				}
				if ttft == nil {
					v := millis(o.now().Sub(start))
					ttft = &v
				}
				buf.WriteString(ev.Delta)
				if onFragment != nil {
					onFragment(ev.Delta)
				}
			}

		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}
}

func (o *Orchestrator) complete(ctx context.Context, t ports.Transport, timeout time.Duration, req *domain.InferenceRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sreq := *req
	sreq.Stream = false

	resp, err := t.Complete(ctx, &sreq)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", domain.NewTransportError(domain.ErrorTypeDecode, "empty response")
	}
	return resp.Text, nil
}

// transportFailed records a failed attempt. The span status is only set
// once every attempt has failed.
func (o *Orchestrator) transportFailed(ctx context.Context, span trace.Span, provider domain.Provider, attempt string, err error) {
	te := classify(err)
	span.AddEvent("transport_failed", trace.WithAttributes(
		attribute.String("advisor.attempt", attempt),
		attribute.String("error.type", string(te.Type)),
	))
	o.logger.WarnContext(ctx, "transport attempt failed",
		slog.String("provider", string(provider)),
		slog.String("attempt", attempt),
		slog.String("error_type", string(te.Type)),
		slog.String("error", err.Error()))
}

func (o *Orchestrator) appendJournal(ctx context.Context, rec domain.Recommendation, text string, promptTokens int, snap domain.GameSnapshot) {
	if o.journal == nil {
		return
	}

	// The caller may already be gone; the record should still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	err := o.journal.Append(ctx, &ports.JournalRecord{
		Recommendation: rec,
		RawText:        text,
		PromptTokens:   promptTokens,
		Snapshot:       snap,
	})
	if err != nil {
		o.logger.Error("failed to journal recommendation",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()))
	}
}

// classify maps any transport failure onto the error taxonomy for logs and
// spans.
func classify(err error) *domain.TransportError {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransportError(domain.ErrorTypeTimeout, err.Error()).WithCause(err)
	}
	return transport.ClassifyError(context.Background(), err)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
