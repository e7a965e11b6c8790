package repository

import (
	"context"
	"time"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// BatchStateRepository defines operations for persisting and retrieving daily batch state.
type BatchStateRepository interface {
	// SaveBatchState persists a new BatchState.
	SaveBatchState(ctx context.Context, state *model.BatchState) error

	// UpdateBatchState updates the state of an existing BatchState.
	UpdateBatchState(ctx context.Context, state *model.BatchState) error

	// FindBatchStateByID finds a BatchState by its ID.
	// Returns exception.ErrBatchNotFound if no such batch exists.
	FindBatchStateByID(ctx context.Context, id string) (*model.BatchState, error)

	// FindBatchStateByDate finds the BatchState for the given calendar date.
	// Returns exception.ErrBatchNotFound if no batch exists for that date.
	FindBatchStateByDate(ctx context.Context, date time.Time) (*model.BatchState, error)

	// FindBatchesReadyToResume returns all delayed batches whose backoff window
	// has passed as of now, with auto-resume enabled and no manual intervention pending.
	FindBatchesReadyToResume(ctx context.Context, now time.Time) ([]*model.BatchState, error)

	// UpdateStatus sets the overall batch status. If errorMessage is non-nil it
	// replaces the stored error text.
	UpdateStatus(ctx context.Context, id string, status model.BatchStatus, errorMessage *string) error

	// UpdatePhase sets the status of one phase.
	UpdatePhase(ctx context.Context, id string, phase model.Phase, status model.PhaseStatus) error

	// UpdateProgress sets the processed and failed page counters.
	UpdateProgress(ctx context.Context, id string, processedPages, failedPages int) error

	// UpdateTotalPages records the total page count once known.
	UpdateTotalPages(ctx context.Context, id string, totalPages int) error

	// SetDelay puts the batch into delayed status until the given instant and
	// records the retry attempt count.
	SetDelay(ctx context.Context, id string, until time.Time, retryAttempts int) error

	// ResetDelay clears the backoff window (delayedUntil=now, retryAttempts=0)
	// without changing the batch status.
	ResetDelay(ctx context.Context, id string, now time.Time) error

	// SetManualIntervention sets or clears the manual intervention flag. When
	// setting it, the batch status also becomes manual_intervention and the
	// error message is replaced if non-nil.
	SetManualIntervention(ctx context.Context, id string, required bool, errorMessage *string) error
}
