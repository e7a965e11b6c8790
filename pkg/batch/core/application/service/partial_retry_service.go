package service

import (
	"context"
	"fmt"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repo "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/comical/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// PartialRetryService lets operators reprocess parts of a batch without
// redoing everything: a page range, only the currently erroring pages, or a
// clean-slate full retry.
type PartialRetryService struct {
	states repo.BatchStateRepository
	errors repo.PageErrorRepository
}

// NewPartialRetryService creates a new PartialRetryService.
func NewPartialRetryService(states repo.BatchStateRepository, pageErrors repo.PageErrorRepository) *PartialRetryService {
	return &PartialRetryService{states: states, errors: pageErrors}
}

// ResetPageRange deletes the page error records for every page in the
// inclusive range [startPage, endPage] for the given phase, so those pages can
// be reprocessed. Returns the number of records deleted.
//
// The progress counters are deliberately left untouched; keeping them
// consistent across a range reset is the caller's responsibility.
func (s *PartialRetryService) ResetPageRange(ctx context.Context, batchID string, startPage, endPage int, phase model.Phase) (int, error) {
	const op = "partial_retry_service"

	if startPage < 1 {
		return 0, exception.NewBatchErrorf(op, "startPage must be >= 1, got %d", startPage)
	}
	if endPage < startPage {
		return 0, exception.NewBatchErrorf(op, "endPage (%d) must be >= startPage (%d)", endPage, startPage)
	}

	deleted, err := s.errors.DeletePageRange(ctx, batchID, startPage, endPage, phase)
	if err != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to reset pages [%d,%d] for batch %s", startPage, endPage, batchID), err, false, true)
	}

	logger.Infof("Reset %d page errors in range [%d,%d] for batch %s, phase %s", deleted, startPage, endPage, batchID, phase)
	return deleted, nil
}

// GetErrorPages returns the sorted distinct page numbers with unresolved
// errors for the batch and phase.
func (s *PartialRetryService) GetErrorPages(ctx context.Context, batchID string, phase model.Phase) ([]int, error) {
	return s.errors.FindUnresolvedErrorPages(ctx, batchID, phase)
}

// ResetErrorPagesOnly deletes the error records for every currently erroring
// page of the phase and decrements the failed page counter by the number of
// pages cleared, floored at zero. Returns the cleared page numbers.
func (s *PartialRetryService) ResetErrorPagesOnly(ctx context.Context, batchID string, phase model.Phase) ([]int, error) {
	const op = "partial_retry_service"

	pages, err := s.errors.FindUnresolvedErrorPages(ctx, batchID, phase)
	if err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to list error pages for batch %s", batchID), err, false, true)
	}
	if len(pages) == 0 {
		return nil, nil
	}

	if _, err := s.errors.DeletePages(ctx, batchID, pages, phase); err != nil {
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to delete error pages for batch %s", batchID), err, false, true)
	}

	state, err := s.states.FindBatchStateByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	failed := state.FailedPages - len(pages)
	if failed < 0 {
		failed = 0
	}
	if err := s.states.UpdateProgress(ctx, batchID, state.ProcessedPages, failed); err != nil {
		return nil, err
	}

	logger.Infof("Reset %d error pages for batch %s, phase %s; failedPages %d -> %d",
		len(pages), batchID, phase, state.FailedPages, failed)
	return pages, nil
}

// MarkPagesSuccessful marks the page error records for the given pages and
// phase as resolved, after a successful re-run of previously failing pages.
func (s *PartialRetryService) MarkPagesSuccessful(ctx context.Context, batchID string, pages []int, phase model.Phase) error {
	if len(pages) == 0 {
		return nil
	}
	if err := s.errors.MarkResolved(ctx, batchID, pages, phase); err != nil {
		return err
	}
	logger.Infof("Marked %d pages successful for batch %s, phase %s", len(pages), batchID, phase)
	return nil
}

// GetRetryStatistics returns a read-only summary of the batch's retry posture.
func (s *PartialRetryService) GetRetryStatistics(ctx context.Context, batchID string) (*model.RetryStatistics, error) {
	state, err := s.states.FindBatchStateByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	registrationErrors, err := s.errors.CountUnresolvedErrors(ctx, batchID, model.PhaseRegistration)
	if err != nil {
		return nil, err
	}
	imageErrors, err := s.errors.CountUnresolvedErrors(ctx, batchID, model.PhaseImageDownload)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if state.TotalPages != nil {
		totalPages = *state.TotalPages
	}

	return &model.RetryStatistics{
		BatchID:             state.ID,
		TotalPages:          totalPages,
		ProcessedPages:      state.ProcessedPages,
		FailedPages:         state.FailedPages,
		RegistrationErrors:  registrationErrors,
		ImageDownloadErrors: imageErrors,
		RetryAttempts:       state.RetryAttempts,
		CanRetry:            !state.ManualInterventionRequired,
	}, nil
}

// ResetBatchForFullRetry rewinds the batch to a clean slate: progress counters
// zeroed, both phases pending, all unresolved error records deleted and the
// status reset to pending.
func (s *PartialRetryService) ResetBatchForFullRetry(ctx context.Context, batchID string) error {
	const op = "partial_retry_service"

	if _, err := s.states.FindBatchStateByID(ctx, batchID); err != nil {
		return err
	}

	if err := s.states.UpdateProgress(ctx, batchID, 0, 0); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to reset counters for batch %s", batchID), err, false, true)
	}
	if err := s.states.UpdatePhase(ctx, batchID, model.PhaseRegistration, model.PhaseStatusPending); err != nil {
		return err
	}
	if err := s.states.UpdatePhase(ctx, batchID, model.PhaseImageDownload, model.PhaseStatusPending); err != nil {
		return err
	}
	if _, err := s.errors.DeleteUnresolvedByBatch(ctx, batchID); err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to delete error records for batch %s", batchID), err, false, true)
	}
	if err := s.states.UpdateStatus(ctx, batchID, model.BatchStatusPending, nil); err != nil {
		return err
	}

	logger.Infof("Reset batch %s for full retry", batchID)
	return nil
}
