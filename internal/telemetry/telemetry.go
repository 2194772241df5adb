// Package telemetry configures OpenTelemetry tracing for agent runs.
// Tracing is off unless configured, falling back to otel's no-op provider
// so instrumentation call sites never need to check.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vinayprograms/tagforge"

// Config selects the tracing backend.
type Config struct {
	// Mode is "off" or "otlp".
	Mode string
	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	Endpoint string
	// ServiceVersion is stamped onto the trace resource.
	ServiceVersion string
}

// Setup initializes tracing per the config and returns a shutdown function.
// In "off" mode (or unset) the shutdown function is a no-op and the global
// tracer stays no-op.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Mode == "" || cfg.Mode == "off" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Mode != "otlp" {
		return nil, fmt.Errorf("unknown telemetry mode %q (expected off or otlp)", cfg.Mode)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("tagforge"),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the tracer for agent spans. No-op unless Setup configured
// a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
