// Package notify posts free-text notes to a Llama Stack agent. Delivery is
// fire-and-forget: failures never reach the caller.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 5 * time.Second

// Option configures a Notifier.
type Option func(*Notifier)

// WithTimeout sets the per-note delivery timeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithErrorHandler registers a hook that observes delivery failures.
func WithErrorHandler(fn func(note string, err error)) Option {
	return func(n *Notifier) {
		n.onError = fn
	}
}

// Notifier delivers notes in the background.
type Notifier struct {
	invoker ports.AgentInvoker
	agentID string
	timeout time.Duration
	logger  *slog.Logger
	onError func(note string, err error)
	wg      sync.WaitGroup
}

// New creates a notifier that posts to agentID through invoker. A nil
// invoker is allowed; every note then fails with a not_configured error.
func New(invoker ports.AgentInvoker, agentID string, opts ...Option) *Notifier {
	n := &Notifier{
		invoker: invoker,
		agentID: agentID,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify starts delivery of note and returns immediately. Blank notes are
// dropped.
func (n *Notifier) Notify(note string) {
	if strings.TrimSpace(note) == "" {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.logger.Debug("notifier panic recovered", slog.Any("panic", r))
			}
		}()

		if err := n.deliver(note); err != nil {
			n.logger.Debug("notification dropped",
				slog.String("agent_id", n.agentID),
				slog.String("error", err.Error()))
			if n.onError != nil {
				n.onError(note, err)
			}
		}
	}()
}

func (n *Notifier) deliver(note string) error {
	if n.invoker == nil {
		return domain.NewTransportError(domain.ErrorTypeNotConfigured, "no agent endpoint configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	return n.invoker.InvokeAgent(ctx, n.agentID, note)
}

// Wait blocks until every note started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
