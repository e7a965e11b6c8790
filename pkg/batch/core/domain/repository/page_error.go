package repository

import (
	"context"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// PageErrorRepository defines operations for persisting and retrieving page-level failure records.
type PageErrorRepository interface {
	// UpsertPageError records a page failure. If a record already exists for the
	// (batch, page, phase) triple, it is updated in place with an incremented
	// retry count; otherwise a new record is created.
	UpsertPageError(ctx context.Context, pageError *model.BatchPageError) error

	// FindUnresolvedErrors returns all unresolved errors for the batch and phase,
	// ordered by page number.
	FindUnresolvedErrors(ctx context.Context, batchID string, phase model.Phase) ([]*model.BatchPageError, error)

	// FindUnresolvedErrorPages returns the sorted distinct page numbers with
	// unresolved errors for the batch and phase.
	FindUnresolvedErrorPages(ctx context.Context, batchID string, phase model.Phase) ([]int, error)

	// CountUnresolvedErrors returns the number of distinct pages with unresolved
	// errors for the batch and phase.
	CountUnresolvedErrors(ctx context.Context, batchID string, phase model.Phase) (int, error)

	// MarkResolved marks the error records for the given pages and phase as resolved.
	MarkResolved(ctx context.Context, batchID string, pages []int, phase model.Phase) error

	// DeletePageRange deletes error records whose page number falls within the
	// inclusive range [startPage, endPage] for the given phase. Returns the
	// number of records deleted.
	DeletePageRange(ctx context.Context, batchID string, startPage, endPage int, phase model.Phase) (int, error)

	// DeletePages deletes error records for the given pages and phase. Returns
	// the number of records deleted.
	DeletePages(ctx context.Context, batchID string, pages []int, phase model.Phase) (int, error)

	// DeleteUnresolvedByBatch deletes all unresolved error records for the batch
	// across both phases. Returns the number of records deleted.
	DeleteUnresolvedByBatch(ctx context.Context, batchID string) (int, error)
}
