// Package service implements the application services of the batch worker:
// batch state bookkeeping, retry scheduling policy, partial retry and catalog ingestion.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repo "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/comical/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// BatchStateService provides direct field mutations over the batch state and
// page error stores. It carries no scheduling policy; that lives in
// JobSchedulingService.
type BatchStateService struct {
	states repo.BatchStateRepository
	errors repo.PageErrorRepository
}

// NewBatchStateService creates a new BatchStateService.
func NewBatchStateService(states repo.BatchStateRepository, pageErrors repo.PageErrorRepository) *BatchStateService {
	return &BatchStateService{states: states, errors: pageErrors}
}

// GetOrCreate returns the BatchState for the given date, creating a fresh one
// with pending status if none exists yet.
func (s *BatchStateService) GetOrCreate(ctx context.Context, date time.Time) (*model.BatchState, error) {
	const op = "batch_state_service"

	state, err := s.states.FindBatchStateByDate(ctx, date)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, exception.ErrBatchNotFound) {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to look up batch state for %s", date.Format("2006-01-02")), err, false, true)
	}

	state = model.NewBatchState(date)
	if err := s.states.SaveBatchState(ctx, state); err != nil {
		// A concurrent creator may have won the unique-date race; re-read before failing.
		if existing, findErr := s.states.FindBatchStateByDate(ctx, date); findErr == nil {
			return existing, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to create batch state for %s", date.Format("2006-01-02")), err, false, true)
	}
	logger.Infof("Created batch state %s for date %s", state.ID, state.BatchDate.Format("2006-01-02"))
	return state, nil
}

// Get returns the BatchState with the given ID.
func (s *BatchStateService) Get(ctx context.Context, batchID string) (*model.BatchState, error) {
	return s.states.FindBatchStateByID(ctx, batchID)
}

// GetByDate returns the BatchState for the given calendar date.
func (s *BatchStateService) GetByDate(ctx context.Context, date time.Time) (*model.BatchState, error) {
	return s.states.FindBatchStateByDate(ctx, date)
}

// UpdateStatus sets the overall batch status, optionally replacing the error message.
func (s *BatchStateService) UpdateStatus(ctx context.Context, batchID string, status model.BatchStatus, errorMessage *string) error {
	if err := s.states.UpdateStatus(ctx, batchID, status, errorMessage); err != nil {
		return err
	}
	logger.Debugf("Updated batch %s status to %s", batchID, status)
	return nil
}

// UpdatePhase sets the status of one phase.
func (s *BatchStateService) UpdatePhase(ctx context.Context, batchID string, phase model.Phase, status model.PhaseStatus) error {
	if err := s.states.UpdatePhase(ctx, batchID, phase, status); err != nil {
		return err
	}
	logger.Debugf("Updated batch %s phase %s to %s", batchID, phase, status)
	return nil
}

// UpdateProgress sets the processed and failed page counters.
func (s *BatchStateService) UpdateProgress(ctx context.Context, batchID string, processedPages, failedPages int) error {
	return s.states.UpdateProgress(ctx, batchID, processedPages, failedPages)
}

// UpdateTotalPages records the total page count once known.
func (s *BatchStateService) UpdateTotalPages(ctx context.Context, batchID string, totalPages int) error {
	return s.states.UpdateTotalPages(ctx, batchID, totalPages)
}

// SetDelay puts the batch into delayed status until the given instant and
// records the retry attempt count.
func (s *BatchStateService) SetDelay(ctx context.Context, batchID string, until time.Time, retryAttempts int) error {
	if err := s.states.SetDelay(ctx, batchID, until, retryAttempts); err != nil {
		return err
	}
	logger.Infof("Set batch %s delay until %s, retry attempt %d", batchID, until.Format(time.RFC3339), retryAttempts)
	return nil
}

// ResetDelay clears the backoff window without changing the batch status.
func (s *BatchStateService) ResetDelay(ctx context.Context, batchID string) error {
	return s.states.ResetDelay(ctx, batchID, time.Now())
}

// SetManualIntervention sets or clears the manual intervention flag.
func (s *BatchStateService) SetManualIntervention(ctx context.Context, batchID string, required bool, errorMessage *string) error {
	if err := s.states.SetManualIntervention(ctx, batchID, required, errorMessage); err != nil {
		return err
	}
	if required {
		logger.Warnf("Manual intervention set for batch %s", batchID)
	} else {
		logger.Infof("Manual intervention flag cleared for batch %s", batchID)
	}
	return nil
}

// RecordPageError upserts a page-level failure record for the batch.
func (s *BatchStateService) RecordPageError(ctx context.Context, batchID string, pageNumber int, phase model.Phase, errorType, errorMessage string) error {
	pageError := model.NewBatchPageError(batchID, pageNumber, phase, errorType, errorMessage)
	if err := s.errors.UpsertPageError(ctx, pageError); err != nil {
		return err
	}
	logger.Warnf("Recorded page error for batch %s, page %d, phase %s: %s", batchID, pageNumber, phase, errorMessage)
	return nil
}

// GetUnresolvedErrors returns all unresolved page errors for the batch and phase.
func (s *BatchStateService) GetUnresolvedErrors(ctx context.Context, batchID string, phase model.Phase) ([]*model.BatchPageError, error) {
	return s.errors.FindUnresolvedErrors(ctx, batchID, phase)
}

// MarkErrorsResolved marks the page errors for the given pages and phase as resolved.
func (s *BatchStateService) MarkErrorsResolved(ctx context.Context, batchID string, pages []int, phase model.Phase) error {
	return s.errors.MarkResolved(ctx, batchID, pages, phase)
}
