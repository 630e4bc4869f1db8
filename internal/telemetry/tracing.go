// Package telemetry configures OpenTelemetry tracing for the supervisor.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used by the supervisor.
const TracerName = "github.com/Sentinel-Gate/duovisor"

// Provider wraps a tracer provider with its shutdown hook.
type Provider struct {
	trace.TracerProvider
	shutdown func(context.Context) error
}

// Shutdown flushes and stops the provider. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Tracer returns the supervisor tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.TracerProvider.Tracer(TracerName)
}

// NewProvider returns a provider exporting spans as JSON to w when enabled,
// or a no-op provider otherwise.
func NewProvider(enabled bool, w io.Writer, version string) (*Provider, error) {
	if !enabled {
		return &Provider{TracerProvider: noop.NewTracerProvider()}, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "duovisor"),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	return &Provider{TracerProvider: tp, shutdown: tp.Shutdown}, nil
}
