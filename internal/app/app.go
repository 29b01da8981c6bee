// Package app wires configuration into a running advisor.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/blackjack-advisor/internal/advisor"
	"github.com/tjfontaine/blackjack-advisor/internal/auth"
	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
	"github.com/tjfontaine/blackjack-advisor/internal/metrics"
	"github.com/tjfontaine/blackjack-advisor/internal/notify"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
	"github.com/tjfontaine/blackjack-advisor/internal/server"
	"github.com/tjfontaine/blackjack-advisor/internal/storage"
	"github.com/tjfontaine/blackjack-advisor/internal/tokens"
	"github.com/tjfontaine/blackjack-advisor/internal/transport/registry"
)

// App holds the long-lived components built from one configuration.
type App struct {
	Config     *config.Config
	Advisor    *advisor.Orchestrator
	Metrics    *metrics.Aggregator
	Journal    ports.Journal
	Notifier   *notify.Notifier
	Models     *config.ModelTable
	Transports map[domain.Provider]ports.Transport

	logger *slog.Logger
}

// Build creates every component described by cfg. Close releases them.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry.RegisterBuiltins()

	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	transports, err := registry.Build(cfg, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build transports: %w", err)
	}

	journal, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	a := &App{
		Config:     cfg,
		Metrics:    metrics.New(metrics.DefaultCapacity),
		Journal:    journal,
		Models:     config.NewModelTable(cfg),
		Transports: transports,
		logger:     logger,
	}
	a.Notifier = a.buildNotifier()
	a.Advisor = a.buildAdvisor()
	return a, nil
}

func (a *App) buildAdvisor() *advisor.Orchestrator {
	cfg := a.Config
	sampling := domain.SamplingParams{
		MaxTokens:   cfg.Inference.MaxTokens,
		Temperature: cfg.Inference.Temperature,
		TopP:        cfg.Inference.TopP,
	}
	defaults := advisor.Options{
		Timeout:       cfg.Inference.Timeout,
		MaxRetries:    cfg.Inference.MaxRetries,
		ModelResolver: a.Models.Resolve,
		Sampling:      sampling,
	}

	opts := []advisor.Option{
		advisor.WithTransports(a.Transports),
		advisor.WithMetrics(a.Metrics),
		advisor.WithTokenCounter(tokens.NewCounter()),
		advisor.WithLogger(a.logger),
	}
	for name, pc := range cfg.Providers {
		p := domain.Provider(name)
		po := defaults
		po.SupportsStreaming = pc.Stream
		opts = append(opts, advisor.WithProviderOptions(p, po))
	}
	if a.Journal != nil {
		opts = append(opts, advisor.WithJournal(a.Journal))
	}
	return advisor.New(defaults, opts...)
}

// buildNotifier posts notes through the configured provider when its
// transport can invoke agents. Otherwise notes are dropped.
func (a *App) buildNotifier() *notify.Notifier {
	var invoker ports.AgentInvoker
	if p, err := domain.ParseProvider(a.Config.Notify.Provider); err == nil {
		invoker, _ = a.Transports[p].(ports.AgentInvoker)
	}
	if invoker == nil {
		a.logger.Warn("notifications disabled: provider has no agent endpoint",
			slog.String("provider", a.Config.Notify.Provider))
	}
	return notify.New(invoker, a.Config.Notify.AgentID,
		notify.WithTimeout(a.Config.Notify.Timeout),
		notify.WithLogger(a.logger))
}

// Reload applies a changed configuration. Only model ids are swapped;
// transports and storage need a restart.
func (a *App) Reload(cfg *config.Config) {
	a.Models.Update(cfg)
	a.logger.Info("provider models reloaded")
}

// Server builds the HTTP server for the app.
func (a *App) Server() *server.Server {
	srv := server.New(a.Config.Server.Port, a.logger, auth.NewAuthenticator(a.Config.Server.APIKeyHashes))
	server.NewHandler(a.Advisor, a.Metrics, a.Journal, a.Notifier, a.logger).RegisterRoutes(srv.Router)
	return srv
}

// Close waits for pending notifications and closes the journal.
func (a *App) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.Notifier.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("pending notifications: %w", ctx.Err()))
	}
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(errs...)
}
