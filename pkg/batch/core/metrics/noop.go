package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordJobStart(ctx context.Context, jobKind string) {}
func (r *NoOpMetricRecorder) RecordJobEnd(ctx context.Context, jobKind string, status string, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordPageProcessed(ctx context.Context, jobKind string) {}
func (r *NoOpMetricRecorder) RecordPageFailed(ctx context.Context, jobKind string, errorType string) {
}
func (r *NoOpMetricRecorder) RecordRetryScheduled(ctx context.Context, jobKind string, attempt int) {}
func (r *NoOpMetricRecorder) RecordManualIntervention(ctx context.Context, jobKind string)          {}
func (r *NoOpMetricRecorder) RecordResume(ctx context.Context, jobKind string)                      {}
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartJobSpan(ctx context.Context, jobKind string, batchID string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartPageSpan(ctx context.Context, jobKind string, page int) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
