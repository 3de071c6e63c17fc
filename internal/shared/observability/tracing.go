package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dwmm"

// Tracer creates spans for daemon requests and indexing work. It delegates to
// the global provider, so spans are no-ops until InitTracing installs one.
var Tracer trace.Tracer = otel.Tracer(tracerName)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(ctx context.Context) error

// InitTracing installs an OTLP/gRPC exporting tracer provider. With tracing
// disabled or no endpoint it returns a no-op shutdown and leaves the global
// provider untouched.
func InitTracing(ctx context.Context, enabled bool, endpoint string) (ShutdownFunc, error) {
	if !enabled || endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", tracerName))),
	)
	otel.SetTracerProvider(tp)
	Tracer = tp.Tracer(tracerName)

	return tp.Shutdown, nil
}
