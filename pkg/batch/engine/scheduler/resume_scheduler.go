// Package scheduler hosts the background poller that resumes delayed batches
// once their backoff window has elapsed.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/comical/pkg/batch/core/metrics"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// ResumeScheduler periodically polls for delayed batches whose backoff has
// expired and re-runs the driver for them. Each process serves a single job
// kind, so only batches whose matching phase is still incomplete are resumed
// here; the other phase belongs to its own process.
type ResumeScheduler struct {
	scheduling *service.JobSchedulingService
	driver     *job.Driver
	interval   time.Duration
	recorder   metrics.MetricRecorder

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewResumeScheduler creates the resume scheduler for this process's driver.
func NewResumeScheduler(
	scheduling *service.JobSchedulingService,
	driver *job.Driver,
	cfg *config.Config,
	recorder metrics.MetricRecorder,
) *ResumeScheduler {
	return &ResumeScheduler{
		scheduling: scheduling,
		driver:     driver,
		interval:   cfg.Comical.Batch.Scheduling.ResumePollingInterval(),
		recorder:   recorder,
	}
}

// Start launches the polling loop. It returns immediately.
func (s *ResumeScheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
	logger.Infof("Resume scheduler started (polling every %s).", s.interval)
}

// Stop terminates the polling loop and waits for it to drain.
func (s *ResumeScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	logger.Infof("Resume scheduler stopped.")
}

func (s *ResumeScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick polls once. Driver runs can outlast the polling interval, so
// overlapping ticks are dropped rather than queued.
func (s *ResumeScheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	defer s.running.Store(false)

	batches, err := s.scheduling.GetBatchesReadyToResume(ctx)
	if err != nil {
		logger.Errorf("Failed to query batches ready to resume: %v", err)
		return
	}

	phase := s.driver.Kind().Phase()
	for _, batch := range batches {
		if ctx.Err() != nil {
			return
		}
		if batch.PhaseStatusOf(phase) == model.PhaseStatusCompleted {
			continue
		}

		logger.Infof("Resuming batch %s (%s) after backoff, retry attempt %d.", batch.ID, batch.BatchDate.Format("2006-01-02"), batch.RetryAttempts)
		s.recorder.RecordResume(ctx, s.driver.Kind().String())

		// Relaunching is what clears the delay: the driver's own scheduling
		// check admits a delayed batch once delayedUntil has elapsed and
		// flips it back to running.
		if err := s.driver.RunForDate(ctx, batch.BatchDate); err != nil {
			logger.Errorf("Resumed run failed for batch %s: %v", batch.ID, err)
		}
	}
}
