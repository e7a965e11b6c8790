package metrics

import (
	"go.uber.org/fx"
)

// Module provides the no-op metrics components. It is used in wiring that does
// not include the infrastructure metrics implementations.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewNoOpMetricRecorder,
		fx.As(new(MetricRecorder)),
	)),
	fx.Provide(fx.Annotate(
		NewNoOpTracer,
		fx.As(new(Tracer)),
	)),
)
