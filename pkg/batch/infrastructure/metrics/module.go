package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	metrics "github.com/tigerroll/comical/pkg/batch/core/metrics"
)

// Module provides the Prometheus recorder and the OpenTelemetry tracer. The
// tracer provider is flushed and shut down with the application lifecycle.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRecorder,
		func(r *PrometheusRecorder) metrics.MetricRecorder { return r },
		func(r *PrometheusRecorder) *prometheus.Registry { return r.GetRegistry() },
	),
	fx.Provide(
		NewOpenTelemetryTracer,
		func(t *OpenTelemetryTracer) metrics.Tracer { return t },
	),
	fx.Invoke(func(lc fx.Lifecycle, tracer *OpenTelemetryTracer) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return tracer.Shutdown(ctx)
			},
		})
	}),
)
