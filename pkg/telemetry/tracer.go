// Package telemetry gives runs spans and metrics. Tracing exports
// through OpenTelemetry to stdout or an OTLP collector; metrics
// accumulate in a Prometheus registry and are written to a
// node-exporter textfile at the end of the run. Both are optional and
// default to off; a run behaves identically with them disabled.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/graftwork/graft/pkg/config"
)

const serviceName = "graft"

// Tracer wraps the OpenTelemetry tracer provider for one run.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a tracer from the [telemetry] section. tracing
// "disabled" yields a working no-op tracer; spans are created but go
// nowhere.
func NewTracer(ctx context.Context, cfg *config.TelemetryConfig, version string) (*Tracer, error) {
	if cfg.Tracing == "disabled" {
		provider := sdktrace.NewTracerProvider()
		return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Tracing {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Tracing)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}, nil
}

// StartRun opens the root span of a run.
func (t *Tracer) StartRun(ctx context.Context, payloads int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graft.run",
		trace.WithAttributes(attribute.Int("graft.payloads", payloads)))
}

// StartPhase opens a span for one payload phase (acquire or deploy).
func (t *Tracer) StartPhase(ctx context.Context, phase, payload string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graft."+phase,
		trace.WithAttributes(attribute.String("graft.payload", payload)))
}

// EndSpan closes a span, recording err on it when non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
