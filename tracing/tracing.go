package tracing

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

var log = logging.Logger("tracing")

// Tracer starts the spans of dealbot operations. Spans are discarded until
// Start installs an exporting provider.
var Tracer = otel.Tracer("github.com/filecoin-project/dealbot", trace.WithSchemaURL(semconv.SchemaURL))

// Start installs a global tracer provider that batches spans to the OTLP
// HTTP collector configured by the OTEL_EXPORTER_OTLP_* environment
// variables. A fraction sampleRatio of root spans is kept. The returned
// function flushes pending spans and stops the export.
func Start(ctx context.Context, service string, version string, sampleRatio float64) (func(context.Context) error, error) {
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(service),
		semconv.ServiceVersionKey.String(version),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	log.Infow("exporting traces", "service", service, "sample-ratio", sampleRatio)

	return tp.Shutdown, nil
}
