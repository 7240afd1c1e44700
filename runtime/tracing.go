package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flowforge/flowforge/runtime"

// Span attribute keys.
const (
	RunIDKey      = attribute.Key("flowforge.run.id")
	RunMockKey    = attribute.Key("flowforge.run.mock")
	RunStepsKey   = attribute.Key("flowforge.run.steps")
	StepIDKey     = attribute.Key("flowforge.step.id")
	StepTitleKey  = attribute.Key("flowforge.step.title")
	StepModelKey  = attribute.Key("flowforge.step.model")
	StepOutputKey = attribute.Key("flowforge.step.output_key")
)

// NewTracerProvider installs a global tracer provider exporting spans over
// OTLP/HTTP. The exporter reads the standard OTEL_EXPORTER_OTLP_* variables.
func NewTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
