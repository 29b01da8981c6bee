package advisor

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/tokens"
)

// DefaultTimeout bounds each transport call when Options.Timeout is unset.
const DefaultTimeout = 20 * time.Second

// ModelResolver maps a provider to the model id to request.
type ModelResolver func(domain.Provider) string

// Options controls how one provider is consulted.
type Options struct {
	// SupportsStreaming makes the streaming path the first attempt.
	SupportsStreaming bool

	// Timeout bounds each transport call. Zero selects DefaultTimeout.
	Timeout time.Duration

	// MaxRetries is the transport-level retry budget (0 or 1). It is applied
	// when the transport is built; the orchestrator never loops itself.
	MaxRetries int

	// ModelResolver supplies the model id. Nil sends an empty model id.
	ModelResolver ModelResolver

	// Sampling is sent with every request.
	Sampling domain.SamplingParams
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) model(p domain.Provider) string {
	if o.ModelResolver == nil {
		return ""
	}
	return o.ModelResolver(p)
}

// Option is a functional option for configuring an Orchestrator.
type Option func(*Orchestrator)

// WithTransport registers the transport used for p.
func WithTransport(p domain.Provider, t ports.Transport) Option {
	return func(o *Orchestrator) {
		o.transports[p] = t
	}
}

// WithTransports registers every transport in m.
func WithTransports(m map[domain.Provider]ports.Transport) Option {
	return func(o *Orchestrator) {
		for p, t := range m {
			o.transports[p] = t
		}
	}
}

// WithProviderOptions overrides the default options for p.
func WithProviderOptions(p domain.Provider, opts Options) Option {
	return func(o *Orchestrator) {
		o.options[p] = opts
	}
}

// WithMetrics sets where timing samples are recorded.
func WithMetrics(m ports.MetricsRecorder) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithJournal persists every recommendation to j.
func WithJournal(j ports.Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithTokenCounter sets the counter used to size prompts.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(o *Orchestrator) {
		o.tokens = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for recommendation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// CallOption adjusts a single Recommend call.
type CallOption func(*callConfig)

type callConfig struct {
	onFragment func(string)
}

// WithFragmentHandler observes each streamed text fragment as it is
// accumulated, in arrival order. Fragments from a stream that later fails
// are still delivered; the returned Recommendation is authoritative.
func WithFragmentHandler(fn func(string)) CallOption {
	return func(c *callConfig) {
		c.onFragment = fn
	}
}
