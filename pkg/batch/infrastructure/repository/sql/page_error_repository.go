package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/comical/pkg/batch/adapter/database"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
)

// SQLPageErrorRepository implements repository.PageErrorRepository on GORM.
type SQLPageErrorRepository struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

var _ repository.PageErrorRepository = (*SQLPageErrorRepository)(nil)

// NewSQLPageErrorRepository creates a new SQLPageErrorRepository.
func NewSQLPageErrorRepository(dbResolver database.DBConnectionResolver, dbName string) repository.PageErrorRepository {
	return &SQLPageErrorRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

func (r *SQLPageErrorRepository) db(ctx context.Context) (*gorm.DB, error) {
	return resolveGormDB(ctx, r.dbResolver, r.dbName)
}

func (r *SQLPageErrorRepository) UpsertPageError(ctx context.Context, pageError *model.BatchPageError) error {
	const op = "SQLPageErrorRepository.UpsertPageError"
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	// One row per (batch, page, phase): a repeated failure bumps the retry
	// count on the existing row instead of inserting a duplicate.
	var existing BatchPageErrorEntity
	findErr := db.
		Where("batch_id = ? AND page_number = ? AND phase = ?", pageError.BatchID, pageError.PageNumber, string(pageError.Phase)).
		First(&existing).Error
	if findErr != nil {
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			entity := fromDomainPageError(pageError)
			if createErr := db.Create(entity).Error; createErr != nil {
				return exception.NewBatchError(op, fmt.Sprintf("failed to create page error (batch: %s, page: %d)", pageError.BatchID, pageError.PageNumber), createErr, false, true)
			}
			return nil
		}
		return exception.NewBatchError(op, fmt.Sprintf("failed to look up page error (batch: %s, page: %d)", pageError.BatchID, pageError.PageNumber), findErr, false, true)
	}

	updates := map[string]interface{}{
		"error_type":    pageError.ErrorType,
		"error_message": pageError.ErrorMessage,
		"retry_count":   existing.RetryCount + 1,
		"last_retry_at": time.Now(),
		"resolved":      false,
		"resolved_at":   nil,
	}
	if updateErr := db.Model(&BatchPageErrorEntity{}).Where("id = ?", existing.ID).Updates(updates).Error; updateErr != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update page error (batch: %s, page: %d)", pageError.BatchID, pageError.PageNumber), updateErr, false, true)
	}
	return nil
}

func (r *SQLPageErrorRepository) FindUnresolvedErrors(ctx context.Context, batchID string, phase model.Phase) ([]*model.BatchPageError, error) {
	const op = "SQLPageErrorRepository.FindUnresolvedErrors"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entities []BatchPageErrorEntity
	err = db.
		Where("batch_id = ? AND phase = ? AND resolved = ?", batchID, string(phase), false).
		Order("page_number ASC").
		Find(&entities).Error
	if err != nil {
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return nil, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find unresolved errors (batch: %s)", batchID), err, false, true)
	}

	pageErrors := make([]*model.BatchPageError, 0, len(entities))
	for i := range entities {
		pageErrors = append(pageErrors, toDomainPageError(&entities[i]))
	}
	return pageErrors, nil
}

func (r *SQLPageErrorRepository) FindUnresolvedErrorPages(ctx context.Context, batchID string, phase model.Phase) ([]int, error) {
	const op = "SQLPageErrorRepository.FindUnresolvedErrorPages"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var pages []int
	err = db.Model(&BatchPageErrorEntity{}).
		Distinct("page_number").
		Where("batch_id = ? AND phase = ? AND resolved = ?", batchID, string(phase), false).
		Order("page_number ASC").
		Pluck("page_number", &pages).Error
	if err != nil {
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return nil, nil
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find unresolved error pages (batch: %s)", batchID), err, false, true)
	}
	return pages, nil
}

func (r *SQLPageErrorRepository) CountUnresolvedErrors(ctx context.Context, batchID string, phase model.Phase) (int, error) {
	const op = "SQLPageErrorRepository.CountUnresolvedErrors"
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&BatchPageErrorEntity{}).
		Distinct("page_number").
		Where("batch_id = ? AND phase = ? AND resolved = ?", batchID, string(phase), false).
		Count(&count).Error
	if err != nil {
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return 0, nil
		}
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to count unresolved errors (batch: %s)", batchID), err, false, true)
	}
	return int(count), nil
}

func (r *SQLPageErrorRepository) MarkResolved(ctx context.Context, batchID string, pages []int, phase model.Phase) error {
	const op = "SQLPageErrorRepository.MarkResolved"
	if len(pages) == 0 {
		return nil
	}
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	err = db.Model(&BatchPageErrorEntity{}).
		Where("batch_id = ? AND phase = ? AND page_number IN ?", batchID, string(phase), pages).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": now,
		}).Error
	if err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to mark errors resolved (batch: %s)", batchID), err, false, true)
	}
	return nil
}

func (r *SQLPageErrorRepository) DeletePageRange(ctx context.Context, batchID string, startPage, endPage int, phase model.Phase) (int, error) {
	const op = "SQLPageErrorRepository.DeletePageRange"
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("batch_id = ? AND phase = ? AND page_number >= ? AND page_number <= ?", batchID, string(phase), startPage, endPage).
		Delete(&BatchPageErrorEntity{})
	if result.Error != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to delete error records for pages [%d,%d] (batch: %s)", startPage, endPage, batchID), result.Error, false, true)
	}
	return int(result.RowsAffected), nil
}

func (r *SQLPageErrorRepository) DeletePages(ctx context.Context, batchID string, pages []int, phase model.Phase) (int, error) {
	const op = "SQLPageErrorRepository.DeletePages"
	if len(pages) == 0 {
		return 0, nil
	}
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("batch_id = ? AND phase = ? AND page_number IN ?", batchID, string(phase), pages).
		Delete(&BatchPageErrorEntity{})
	if result.Error != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to delete error records (batch: %s)", batchID), result.Error, false, true)
	}
	return int(result.RowsAffected), nil
}

func (r *SQLPageErrorRepository) DeleteUnresolvedByBatch(ctx context.Context, batchID string) (int, error) {
	const op = "SQLPageErrorRepository.DeleteUnresolvedByBatch"
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}

	result := db.
		Where("batch_id = ? AND resolved = ?", batchID, false).
		Delete(&BatchPageErrorEntity{})
	if result.Error != nil {
		return 0, exception.NewBatchError(op, fmt.Sprintf("failed to delete unresolved error records (batch: %s)", batchID), result.Error, false, true)
	}
	return int(result.RowsAffected), nil
}
