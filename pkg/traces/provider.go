package traces

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider is a wrapper around the open telemetry tracer.Provider
// It helps initialize an OTLP exporter, and configures the corresponding trace provider
type Provider struct {
	serviceName      string
	exporterEndpoint string

	tracerProvider *sdktrace.TracerProvider
}

// NewProvider creates a new instance of Provider
func NewProvider(exporterEndPoint, serviceName string) *Provider {
	return &Provider{
		serviceName:      serviceName,
		exporterEndpoint: exporterEndPoint,
	}
}

// Register initializes an OTLP exporter, and configures the corresponding trace provider
func (p *Provider) Register(ctx context.Context) error {
	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(p.serviceName),
		),
	)
	if err != nil {
		return err
	}

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(p.exporterEndpoint),
	)
	if err != nil {
		return err
	}

	// batch spans before export
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(p.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return nil
}

// Tracer returns a named tracer from the global provider. Before Register
// that is the no-op provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Deregister will flush any remaining spans and shut down the exporter.
func (p *Provider) Deregister(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.Shutdown(ctx)
}
