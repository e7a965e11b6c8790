package metrics

import (
	"context"
)

// Tracer is an abstract interface for distributed tracing. It provides
// functionality to integrate with tracing systems like OpenTelemetry,
// enabling visualization of job and page-level execution flows.
type Tracer interface {
	// StartJobSpan starts a span for one batch job run.
	//
	// Returns: A context with the new span set, and a function to end the span.
	// It is recommended to call the returned function in a defer statement.
	StartJobSpan(ctx context.Context, jobKind string, batchID string) (context.Context, func())

	// StartPageSpan starts a span for the processing of a single page, nested
	// under the job span carried by ctx.
	StartPageSpan(ctx context.Context, jobKind string, page int) (context.Context, func())

	// RecordError records an error in the current span.
	//
	// module: The name of the component where the error occurred.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
