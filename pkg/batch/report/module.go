package report

import (
	"go.uber.org/fx"

	job "github.com/tigerroll/comical/pkg/batch/engine/job"
)

// Module wires the page error report exporter.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewPageErrorExporter,
			fx.As(new(job.FailureReporter)),
		),
	),
)
