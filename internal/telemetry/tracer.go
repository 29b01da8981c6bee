// Package telemetry sets up OpenTelemetry tracing for the advisor.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName identifies the advisor in exported spans.
const ServiceName = "blackjack-advisor"

// Option configures InitTracer.
type Option func(*tracerConfig)

type tracerConfig struct {
	writer  io.Writer
	pretty  bool
	version string
}

// WithWriter sends exported spans to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(c *tracerConfig) {
		c.writer = w
	}
}

// WithCompactOutput writes one span per line.
func WithCompactOutput() Option {
	return func(c *tracerConfig) {
		c.pretty = false
	}
}

// WithServiceVersion records the build version on the resource.
func WithServiceVersion(v string) Option {
	return func(c *tracerConfig) {
		c.version = v
	}
}

// InitTracer initializes OpenTelemetry tracing and installs the provider
// globally. The returned function flushes and stops the exporter.
func InitTracer(serviceName string, logger *slog.Logger, opts ...Option) (func(context.Context) error, error) {
	cfg := tracerConfig{pretty: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	exporterOpts := []stdouttrace.Option{}
	if cfg.pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	if cfg.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(cfg.writer))
	}

	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Create resource with service name
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(serviceName))}
	if cfg.version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.version)))
	}
	custom, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), custom)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	if logger != nil {
		logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))
	}

	return tp.Shutdown, nil
}
