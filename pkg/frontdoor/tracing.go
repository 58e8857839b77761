package frontdoor

import (
	"context"
	"fmt"

	"github.com/polisai/realm-finder/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingManager handles OpenTelemetry tracing setup. A nil or disabled
// manager is valid and traces nothing.
type TracingManager struct {
	provider   *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
	enabled    bool
}

// NewTracingManager creates a tracing manager exporting over OTLP/gRPC.
func NewTracingManager(ctx context.Context, cfg *config.TracingConfig, version string) (*TracingManager, error) {
	if cfg == nil || !cfg.Enabled {
		return &TracingManager{enabled: false}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	return newTracingManager(cfg.ServiceName, version, sdktrace.WithBatcher(exporter))
}

// newTracingManager builds the provider around the given span processor
// option; tests pass an in-memory recorder here.
func newTracingManager(serviceName, version string, opts ...sdktrace.TracerProviderOption) (*TracingManager, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	tp := sdktrace.NewTracerProvider(opts...)

	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagator)

	return &TracingManager{
		provider:   tp,
		propagator: propagator,
		enabled:    true,
	}, nil
}

// Enabled reports whether spans are recorded.
func (tm *TracingManager) Enabled() bool {
	return tm != nil && tm.enabled
}

// TracerProvider returns the provider, or the global one when disabled.
func (tm *TracingManager) TracerProvider() trace.TracerProvider {
	if !tm.Enabled() {
		return otel.GetTracerProvider()
	}
	return tm.provider
}

// Propagator returns the configured propagator.
func (tm *TracingManager) Propagator() propagation.TextMapPropagator {
	if !tm.Enabled() {
		return otel.GetTextMapPropagator()
	}
	return tm.propagator
}

// Shutdown flushes pending spans and stops the exporter.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if !tm.Enabled() {
		return nil
	}
	return tm.provider.Shutdown(ctx)
}
