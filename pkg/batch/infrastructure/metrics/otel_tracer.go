package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	config "github.com/tigerroll/comical/pkg/batch/core/config"
	metrics "github.com/tigerroll/comical/pkg/batch/core/metrics"
	logger "github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

const tracerName = "comical/batch"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider // nil when tracing is disabled
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)

// NewOpenTelemetryTracer creates a new OpenTelemetryTracer. When tracing is
// enabled in the configuration, spans are exported over OTLP/HTTP to the
// configured endpoint; otherwise a no-op tracer provider is used.
func NewOpenTelemetryTracer(cfg *config.Config) (*OpenTelemetryTracer, error) {
	tracingCfg := cfg.Comical.Batch.Tracing
	if !tracingCfg.Enabled {
		logger.Debugf("Tracing is disabled. Using no-op tracer provider.")
		return &OpenTelemetryTracer{tracer: trace.NewNoopTracerProvider().Tracer(tracerName)}, nil
	}

	opts := []otlptracehttp.Option{}
	if tracingCfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(tracingCfg.Endpoint))
	}
	if tracingCfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tracingCfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	logger.Infof("Tracing enabled (service: %s, endpoint: %s)", tracingCfg.ServiceName, tracingCfg.Endpoint)
	return &OpenTelemetryTracer{
		tracer:   provider.Tracer(tracerName),
		provider: provider,
	}, nil
}

// Shutdown flushes pending spans and shuts down the tracer provider.
func (t *OpenTelemetryTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// StartJobSpan starts a span for one batch job run.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, jobKind string, batchID string) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, fmt.Sprintf("job.%s", jobKind),
		trace.WithAttributes(
			attribute.String("batch.job_kind", jobKind),
			attribute.String("batch.id", batchID),
		),
	)
	return spanCtx, func() { span.End() }
}

// StartPageSpan starts a span for the processing of a single page.
func (t *OpenTelemetryTracer) StartPageSpan(ctx context.Context, jobKind string, page int) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, fmt.Sprintf("page.%s", jobKind),
		trace.WithAttributes(
			attribute.String("batch.job_kind", jobKind),
			attribute.Int("batch.page", page),
		),
	)
	return spanCtx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
