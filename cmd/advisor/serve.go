package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/blackjack-advisor/internal/app"
	"github.com/tjfontaine/blackjack-advisor/internal/pkg/config"
	"github.com/tjfontaine/blackjack-advisor/internal/telemetry"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		watch   bool
		tracing bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			if tracing {
				shutdown, err := telemetry.InitTracer(telemetry.ServiceName, logger)
				if err != nil {
					return fmt.Errorf("init tracer: %w", err)
				}
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
					}
				}()
			}

			a, err := app.Build(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				if err := watchConfig(ctx, root.configPath, a, logger); err != nil {
					logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
				}
			}

			srv := a.Server()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", slog.String("error", err.Error()))
			}
			if err := a.Close(shutdownCtx); err != nil {
				logger.Error("close error", slog.String("error", err.Error()))
			}
			logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload provider models when the config file changes")
	cmd.Flags().BoolVar(&tracing, "trace", false, "Export OpenTelemetry spans to stdout")
	return cmd
}

func watchConfig(ctx context.Context, path string, a *app.App, logger *slog.Logger) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	w, err := config.NewWatcher(path, logger)
	if err != nil {
		return err
	}
	// The watch goroutine closes the watcher when ctx ends.
	return w.Watch(ctx, a.Reload)
}
