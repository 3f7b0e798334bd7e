// Package tracing installs the OpenTelemetry tracer provider and wraps
// provisioning handler runs in spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/edvin/peacock"

// Attribute keys set on handler spans.
var (
	AttrInstanceID = attribute.Key("peacock.instance_id")
	AttrStep       = attribute.Key("peacock.step")
	AttrOutcome    = attribute.Key("peacock.outcome")
)

// Options selects the exporter and identifies the process.
type Options struct {
	Exporter     string // none, stdout or otlp
	OTLPEndpoint string
	ServiceName  string
	Environment  string

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// Setup installs the global tracer provider. With the none exporter the
// global no-op provider is left in place. The returned function flushes and
// stops the provider.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch opts.Exporter {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case "otlp":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(opts.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", opts.Exporter, err)
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "peacock"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	if opts.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", opts.Environment))
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}

// StartHandler starts the span of one handler invocation.
func StartHandler(ctx context.Context, step, instanceID string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, step,
		trace.WithAttributes(AttrStep.String(step), AttrInstanceID.String(instanceID)),
	)
}

// EndHandler records the outcome on span and ends it. A faulted outcome
// marks the span as failed.
func EndHandler(span trace.Span, outcome, reason string, faulted bool) {
	span.SetAttributes(AttrOutcome.String(outcome))
	if faulted {
		span.SetStatus(codes.Error, reason)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the trace id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
