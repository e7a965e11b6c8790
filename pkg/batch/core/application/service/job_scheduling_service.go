package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repo "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/comical/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// JobSchedulingService owns the retry scheduling policy: whether a phase may
// proceed, how failures are backed off, and when a batch escalates to manual
// intervention.
type JobSchedulingService struct {
	states     repo.BatchStateRepository
	scheduling config.SchedulingConfig
}

// NewJobSchedulingService creates a new JobSchedulingService.
func NewJobSchedulingService(states repo.BatchStateRepository, cfg *config.Config) *JobSchedulingService {
	return &JobSchedulingService{
		states:     states,
		scheduling: cfg.Comical.Batch.Scheduling,
	}
}

// CanProceed checks whether the given phase of the batch may start now.
// The returned reason is non-empty whenever the answer is false.
//
// Checks are applied in order: existence, manual intervention, active backoff
// window, and the registration-before-images phase dependency.
func (s *JobSchedulingService) CanProceed(ctx context.Context, batchID string, phase model.Phase) (bool, string, error) {
	state, err := s.states.FindBatchStateByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, exception.ErrBatchNotFound) {
			return false, "batch state not found", nil
		}
		return false, "", err
	}

	if state.ManualInterventionRequired {
		return false, "manual intervention required - batch is paused", nil
	}

	if state.Status == model.BatchStatusDelayed && state.DelayedUntil != nil {
		if state.DelayedUntil.After(time.Now()) {
			return false, fmt.Sprintf("batch is delayed until %s", state.DelayedUntil.UTC().Format("2006-01-02 15:04:05 UTC")), nil
		}
	}

	if phase == model.PhaseImageDownload && state.RegistrationPhase != model.PhaseStatusCompleted {
		return false, "registration phase must be completed before image download can proceed", nil
	}

	return true, "", nil
}

// HandleJobFailure applies the failure policy after a job-level error.
//
// While the batch still has retry budget, it is put into delayed status with a
// backoff taken from the configured ladder (indexed by the current attempt
// count) and the attempt counter is incremented; the return value is true.
// Once the attempt counter reaches the maximum, the batch is flagged for
// manual intervention, the failing phase is marked failed and false is
// returned: no further automatic retry will happen.
func (s *JobSchedulingService) HandleJobFailure(ctx context.Context, batchID string, phase model.Phase, jobErr error) (bool, error) {
	const op = "job_scheduling_service"

	state, err := s.states.FindBatchStateByID(ctx, batchID)
	if err != nil {
		return false, exception.NewBatchError(op, fmt.Sprintf("failed to load batch state %s", batchID), err, false, true)
	}

	currentRetry := state.RetryAttempts
	logger.Warnf("Job failure for batch %s, phase %s. Retry attempt: %d/%d: %v",
		batchID, phase, currentRetry, s.scheduling.MaxRetryAttempts, jobErr)

	if currentRetry >= s.scheduling.MaxRetryAttempts {
		logger.Errorf("Max retry attempts (%d) reached for batch %s, phase %s. Requiring manual intervention.",
			s.scheduling.MaxRetryAttempts, batchID, phase)

		message := fmt.Sprintf("max retry attempts reached after %d failures. Last error: %s",
			s.scheduling.MaxRetryAttempts, exception.ExtractErrorMessage(jobErr))
		if err := s.states.SetManualIntervention(ctx, batchID, true, &message); err != nil {
			return false, err
		}
		if err := s.states.UpdatePhase(ctx, batchID, phase, model.PhaseStatusFailed); err != nil {
			return false, err
		}
		return false, nil
	}

	delay := s.scheduling.Backoff(currentRetry)
	delayedUntil := time.Now().Add(delay)
	if err := s.states.SetDelay(ctx, batchID, delayedUntil, currentRetry+1); err != nil {
		return false, err
	}

	logger.Infof("Scheduled retry %d/%d for batch %s at %s (delay %s)",
		currentRetry+1, s.scheduling.MaxRetryAttempts, batchID, delayedUntil.Format(time.RFC3339), delay)
	return true, nil
}

// ResetRetryCounter clears the retry budget after a fully successful run.
// The backoff window collapses to now and the attempt counter returns to zero;
// the batch status is left untouched.
func (s *JobSchedulingService) ResetRetryCounter(ctx context.Context, batchID string) error {
	if err := s.states.ResetDelay(ctx, batchID, time.Now()); err != nil {
		return err
	}
	logger.Infof("Reset retry counter for batch %s", batchID)
	return nil
}

// GetBatchesReadyToResume returns all delayed batches whose backoff window has
// passed, with auto-resume enabled and no manual intervention pending.
func (s *JobSchedulingService) GetBatchesReadyToResume(ctx context.Context) ([]*model.BatchState, error) {
	batches, err := s.states.FindBatchesReadyToResume(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	if len(batches) > 0 {
		logger.Infof("Found %d batches ready to resume", len(batches))
	}
	return batches, nil
}

// ClearManualIntervention lifts the manual intervention stop for a batch.
// It is idempotent: if the flag is already clear, nothing changes. Otherwise
// the flag is cleared, a manual_intervention status is reset to pending, and
// the retry counter is reset so the batch gets a fresh retry budget.
func (s *JobSchedulingService) ClearManualIntervention(ctx context.Context, batchID string) error {
	const op = "job_scheduling_service"

	state, err := s.states.FindBatchStateByID(ctx, batchID)
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to load batch state %s", batchID), err, false, false)
	}

	if !state.ManualInterventionRequired {
		logger.Infof("Manual intervention already cleared for batch %s", batchID)
		return nil
	}

	if err := s.states.SetManualIntervention(ctx, batchID, false, nil); err != nil {
		return err
	}

	if state.Status == model.BatchStatusManualIntervention {
		if err := s.states.UpdateStatus(ctx, batchID, model.BatchStatusPending, nil); err != nil {
			return err
		}
	}

	if err := s.states.ResetDelay(ctx, batchID, time.Now()); err != nil {
		return err
	}

	logger.Infof("Cleared manual intervention for batch %s - ready for auto-resume", batchID)
	return nil
}

// SetManualIntervention puts the batch into the manual intervention stop with
// the given reason (for operator-triggered pauses).
func (s *JobSchedulingService) SetManualIntervention(ctx context.Context, batchID string, reason string) error {
	if err := s.states.SetManualIntervention(ctx, batchID, true, &reason); err != nil {
		return err
	}
	logger.Warnf("Manual intervention set for batch %s: %s", batchID, reason)
	return nil
}
