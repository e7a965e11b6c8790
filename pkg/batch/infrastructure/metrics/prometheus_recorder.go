// Package metrics provides the Prometheus and OpenTelemetry implementations
// of the core metrics abstractions.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	metrics "github.com/tigerroll/comical/pkg/batch/core/metrics"
	logger "github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec

	// Page Metrics
	pageProcessedCounter *prometheus.CounterVec
	pageFailedCounter    *prometheus.CounterVec

	// Scheduling Metrics
	retryScheduledCounter     *prometheus.CounterVec
	manualInterventionCounter *prometheus.CounterVec
	resumeCounter             *prometheus.CounterVec
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its
// own registry, including the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_kind", "status"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of batch job runs by status.",
		}, []string{"job_kind", "status"}),
		pageProcessedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_page_processed_total",
			Help: "Total pages processed successfully.",
		}, []string{"job_kind"}),
		pageFailedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_page_failed_total",
			Help: "Total page failures by error type.",
		}, []string{"job_kind", "error_type"}),
		retryScheduledCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_retry_scheduled_total",
			Help: "Total backoff delays scheduled after job failures.",
		}, []string{"job_kind", "attempt"}),
		manualInterventionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_manual_intervention_total",
			Help: "Total batches paused for manual intervention.",
		}, []string{"job_kind"}),
		resumeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_resume_total",
			Help: "Total automatic resumes of delayed batches.",
		}, []string{"job_kind"}),
	}

	registry.MustRegister(r.jobDurationSeconds)
	registry.MustRegister(r.jobStatusCounter)
	registry.MustRegister(r.pageProcessedCounter)
	registry.MustRegister(r.pageFailedCounter)
	registry.MustRegister(r.retryScheduledCounter)
	registry.MustRegister(r.manualInterventionCounter)
	registry.MustRegister(r.resumeCounter)

	return r
}

// GetRegistry returns the Prometheus registry, for exposure on the HTTP metrics endpoint.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a batch job run.
func (r *PrometheusRecorder) RecordJobStart(_ context.Context, jobKind string) {
	r.jobStatusCounter.WithLabelValues(jobKind, "started").Inc()
	logger.Debugf("Metrics: Job '%s' started.", jobKind)
}

// RecordJobEnd records the end of a batch job run.
func (r *PrometheusRecorder) RecordJobEnd(_ context.Context, jobKind string, status string, duration time.Duration) {
	r.jobStatusCounter.WithLabelValues(jobKind, status).Inc()
	r.jobDurationSeconds.WithLabelValues(jobKind, status).Observe(duration.Seconds())
	logger.Debugf("Metrics: Job '%s' ended with status '%s' after %s.", jobKind, status, duration)
}

// RecordPageProcessed records the successful processing of one page.
func (r *PrometheusRecorder) RecordPageProcessed(_ context.Context, jobKind string) {
	r.pageProcessedCounter.WithLabelValues(jobKind).Inc()
}

// RecordPageFailed records a page-level failure.
func (r *PrometheusRecorder) RecordPageFailed(_ context.Context, jobKind string, errorType string) {
	r.pageFailedCounter.WithLabelValues(jobKind, errorType).Inc()
}

// RecordRetryScheduled records a backoff delay being scheduled.
func (r *PrometheusRecorder) RecordRetryScheduled(_ context.Context, jobKind string, attempt int) {
	r.retryScheduledCounter.WithLabelValues(jobKind, strconv.Itoa(attempt)).Inc()
}

// RecordManualIntervention records a batch being paused for manual intervention.
func (r *PrometheusRecorder) RecordManualIntervention(_ context.Context, jobKind string) {
	r.manualInterventionCounter.WithLabelValues(jobKind).Inc()
}

// RecordResume records an automatic resume of a delayed batch.
func (r *PrometheusRecorder) RecordResume(_ context.Context, jobKind string) {
	r.resumeCounter.WithLabelValues(jobKind).Inc()
}

// RecordDuration records the execution time of a named operation.
// Ad-hoc durations carry arbitrary tag sets, so they are logged rather than
// registered as their own metric families.
func (r *PrometheusRecorder) RecordDuration(_ context.Context, name string, duration time.Duration, tags map[string]string) {
	logger.Debugf("Metrics: Duration '%s' took %s (tags: %v).", name, duration, tags)
}
