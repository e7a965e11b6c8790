package metrics

import (
	"context"
	"time"
)

// MetricRecorder is an abstract interface for recording metrics related to
// batch job execution. It facilitates integration with different metrics
// backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordJobStart records the start of a batch job run.
	//
	// ctx: The context for the operation.
	// jobKind: The kind of job that started (e.g., "registration").
	RecordJobStart(ctx context.Context, jobKind string)

	// RecordJobEnd records the end of a batch job run.
	//
	// ctx: The context for the operation.
	// jobKind: The kind of job that ended.
	// status: The terminal status of the run (e.g., "completed", "failed").
	// duration: The wall-clock duration of the run.
	RecordJobEnd(ctx context.Context, jobKind string, status string, duration time.Duration)

	// RecordPageProcessed records the successful processing of one page.
	RecordPageProcessed(ctx context.Context, jobKind string)

	// RecordPageFailed records a page-level failure.
	//
	// errorType: A short classification of the failure (e.g., "http", "storage").
	RecordPageFailed(ctx context.Context, jobKind string, errorType string)

	// RecordRetryScheduled records a backoff delay being scheduled after a job failure.
	//
	// attempt: The retry attempt number that will run next.
	RecordRetryScheduled(ctx context.Context, jobKind string, attempt int)

	// RecordManualIntervention records a batch being paused for manual intervention.
	RecordManualIntervention(ctx context.Context, jobKind string)

	// RecordResume records an automatic resume of a delayed batch.
	RecordResume(ctx context.Context, jobKind string)

	// RecordDuration records the execution time of a specific operation.
	//
	// name: The name of the duration to record (e.g., "catalog_fetch_duration").
	// tags: Additional tags to associate with the duration.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
