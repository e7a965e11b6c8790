package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/comical/pkg/batch/core/metrics"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// PageOperation processes one page's worth of work for a phase.
type PageOperation func(ctx context.Context, page int) error

// PageCounter asks the upstream catalog for the total page count.
type PageCounter func(ctx context.Context) (int, error)

// FailureReporter exports the unresolved page errors of a finished run.
type FailureReporter interface {
	ExportPageErrors(ctx context.Context, batchID string, phase model.Phase) error
}

// Driver runs one phase of one batch: the sequential page loop with rate
// limiting, checkpointing and per-page error recording. One Driver instance
// serves exactly one JobKind per process invocation.
type Driver struct {
	kind       JobKind
	states     *service.BatchStateService
	scheduling *service.JobSchedulingService
	resume     ResumeStrategy
	pageCount  PageCounter
	op         PageOperation
	interval   time.Duration
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
	reporter   FailureReporter
}

// NewDriver creates the driver for the given job kind, wiring the matching
// page operation and resume strategy from the comic service.
func NewDriver(
	kind JobKind,
	states *service.BatchStateService,
	scheduling *service.JobSchedulingService,
	comics *service.ComicService,
	cfg *config.Config,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	reporter FailureReporter,
) *Driver {
	var (
		resume ResumeStrategy
		op     PageOperation
	)
	switch kind {
	case JobKindImageDownload:
		resume = NewScanResume()
		op = func(ctx context.Context, page int) error {
			_, err := comics.DownloadPageImages(ctx, page)
			return err
		}
	default:
		resume = NewCheckpointResume(states)
		op = func(ctx context.Context, page int) error {
			_, err := comics.RegisterPage(ctx, page)
			return err
		}
	}

	return &Driver{
		kind:       kind,
		states:     states,
		scheduling: scheduling,
		resume:     resume,
		pageCount:  comics.GetPageCount,
		op:         op,
		interval:   kind.Interval(cfg),
		recorder:   recorder,
		tracer:     tracer,
		reporter:   reporter,
	}
}

// NewDriverWithOperation creates a driver with an explicit page counter,
// operation, resume strategy and interval. Used by tests and the partial
// re-run path.
func NewDriverWithOperation(
	kind JobKind,
	states *service.BatchStateService,
	scheduling *service.JobSchedulingService,
	resume ResumeStrategy,
	pageCount PageCounter,
	op PageOperation,
	interval time.Duration,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Driver {
	return &Driver{
		kind:       kind,
		states:     states,
		scheduling: scheduling,
		resume:     resume,
		pageCount:  pageCount,
		op:         op,
		interval:   interval,
		recorder:   recorder,
		tracer:     tracer,
	}
}

// Kind returns the job kind this driver serves.
func (d *Driver) Kind() JobKind {
	return d.kind
}

// Run executes one invocation of the driver for today's batch. Page-level
// failures are recorded and never abort the loop; job-level failures (cannot
// determine the page count) go through the backoff escalation and are
// returned. A nil return with the phase left running means the run was
// cancelled at a page boundary and is safe to resume.
func (d *Driver) Run(ctx context.Context) error {
	return d.RunForDate(ctx, time.Now())
}

// RunForDate executes one invocation of the driver for the batch of the given date.
func (d *Driver) RunForDate(ctx context.Context, date time.Time) error {
	const op = "job_driver"
	phase := d.kind.Phase()
	started := time.Now()

	d.recorder.RecordJobStart(ctx, d.kind.String())
	logger.Infof("Starting %s job.", d.kind)

	state, err := d.states.GetOrCreate(ctx, date)
	if err != nil {
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "failed", time.Since(started))
		return exception.NewBatchError(op, "failed to initialize batch state", err, false, true)
	}

	ctx, endSpan := d.tracer.StartJobSpan(ctx, d.kind.String(), state.ID)
	defer endSpan()

	proceed, reason, err := d.scheduling.CanProceed(ctx, state.ID, phase)
	if err != nil {
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "failed", time.Since(started))
		return err
	}
	if !proceed {
		logger.Warnf("%s job cannot proceed for batch %s: %s", d.kind, state.ID, reason)
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "blocked", time.Since(started))
		return nil
	}

	if state.PhaseStatusOf(phase) == model.PhaseStatusCompleted {
		logger.Infof("%s phase already completed for batch %s. Skipping.", d.kind, state.ID)
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "skipped", time.Since(started))
		return nil
	}

	if err := d.states.UpdateStatus(ctx, state.ID, model.BatchStatusRunning, nil); err != nil {
		return err
	}
	if err := d.states.UpdatePhase(ctx, state.ID, phase, model.PhaseStatusRunning); err != nil {
		return err
	}

	totalPages, err := d.pageCount(ctx)
	if err != nil {
		// Job-level escalation path: the loop never started.
		logger.Errorf("Failed to get page count for batch %s: %v", state.ID, err)
		willRetry, hjErr := d.scheduling.HandleJobFailure(ctx, state.ID, phase, err)
		if hjErr != nil {
			logger.Errorf("Failed to schedule retry for batch %s: %v", state.ID, hjErr)
		}
		if willRetry {
			d.recorder.RecordRetryScheduled(ctx, d.kind.String(), state.RetryAttempts+1)
		} else {
			d.recorder.RecordManualIntervention(ctx, d.kind.String())
		}
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "failed", time.Since(started))
		return exception.NewBatchError(op, fmt.Sprintf("failed to get page count for batch %s", state.ID), err, false, willRetry)
	}
	if err := d.states.UpdateTotalPages(ctx, state.ID, totalPages); err != nil {
		return err
	}

	startPage := d.resume.StartPage(state)
	successful, failed := d.resume.InitialCounters(state)
	logger.Infof("%s: processing pages %d..%d for batch %s (interval %s)", d.kind, startPage, totalPages, state.ID, d.interval)

	cancelled := false
	for page := startPage; page <= totalPages; page++ {
		// Cancellation is honored only at page boundaries.
		if ctx.Err() != nil {
			logger.Warnf("Cancellation requested at page %d. Progress saved.", page)
			cancelled = true
			break
		}

		if pageErr := d.runPage(ctx, page); pageErr != nil {
			logger.Errorf("Failed to process page %d/%d for batch %s: %v", page, totalPages, state.ID, pageErr)
			failed++
			d.recorder.RecordPageFailed(ctx, d.kind.String(), errorTypeOf(pageErr))
			if recErr := d.states.RecordPageError(ctx, state.ID, page, phase, errorTypeOf(pageErr), exception.ExtractErrorMessage(pageErr)); recErr != nil {
				logger.Errorf("Failed to record page error for batch %s page %d: %v", state.ID, page, recErr)
			}
		} else {
			successful++
			d.recorder.RecordPageProcessed(ctx, d.kind.String())
			logger.Infof("Processed page %d/%d for batch %s (%d successful, %d failed)", page, totalPages, state.ID, successful, failed)
		}

		if cpErr := d.resume.Checkpoint(ctx, state.ID, successful, failed); cpErr != nil {
			logger.Errorf("Failed to checkpoint progress for batch %s: %v", state.ID, cpErr)
		}

		if page < totalPages {
			if !d.sleep(ctx) {
				logger.Warnf("Cancellation requested during rate-limit wait after page %d. Progress saved.", page)
				cancelled = true
				break
			}
		}
	}

	return d.finish(ctx, state.ID, phase, successful, failed, totalPages, cancelled, started)
}

// runPage runs the page operation inside its own trace span.
func (d *Driver) runPage(ctx context.Context, page int) error {
	pageCtx, endPage := d.tracer.StartPageSpan(ctx, d.kind.String(), page)
	defer endPage()

	err := d.op(pageCtx, page)
	if err != nil {
		d.tracer.RecordError(pageCtx, d.kind.String(), err)
	}
	return err
}

// finish applies the post-loop state transitions.
func (d *Driver) finish(ctx context.Context, batchID string, phase model.Phase, successful, failed, totalPages int, cancelled bool, started time.Time) error {
	switch {
	case !cancelled && d.resume.Completed(successful, totalPages) && failed == 0:
		if err := d.states.UpdatePhase(ctx, batchID, phase, model.PhaseStatusCompleted); err != nil {
			return err
		}
		if err := d.states.UpdateStatus(ctx, batchID, model.BatchStatusCompleted, nil); err != nil {
			return err
		}
		if err := d.scheduling.ResetRetryCounter(ctx, batchID); err != nil {
			return err
		}
		logger.Infof("%s phase completed successfully for batch %s (%d pages).", d.kind, batchID, totalPages)
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "completed", time.Since(started))

	case !cancelled && failed > 0:
		// Partial success is still done. Page-level errors stay recorded for
		// operator-triggered partial retry.
		if err := d.states.UpdatePhase(ctx, batchID, phase, model.PhaseStatusCompleted); err != nil {
			return err
		}
		logger.Warnf("%s phase completed with failures for batch %s (%d successful, %d failed).", d.kind, batchID, successful, failed)
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "completed_with_failures", time.Since(started))
		if d.reporter != nil {
			if repErr := d.reporter.ExportPageErrors(ctx, batchID, phase); repErr != nil {
				logger.Errorf("Failed to export page error report for batch %s: %v", batchID, repErr)
			}
		}

	default:
		// Interrupted: leave the phase running so a future run resumes.
		logger.Infof("%s phase interrupted for batch %s. Progress saved at %d/%d pages.", d.kind, batchID, successful, totalPages)
		d.recorder.RecordJobEnd(ctx, d.kind.String(), "interrupted", time.Since(started))
	}
	return nil
}

// sleep waits out the rate-limit interval. It returns false when the context
// was cancelled before the interval elapsed.
func (d *Driver) sleep(ctx context.Context) bool {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// errorTypeOf classifies an error for page-error records.
func errorTypeOf(err error) string {
	var be *exception.BatchError
	if errors.As(err, &be) {
		return be.Module
	}
	return "error"
}
