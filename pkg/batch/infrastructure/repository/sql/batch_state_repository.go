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

// SQLBatchStateRepository implements repository.BatchStateRepository on GORM.
type SQLBatchStateRepository struct {
	dbResolver database.DBConnectionResolver
	// dbName is the logical connection name used by this repository (e.g. "batchdb").
	dbName string
}

var _ repository.BatchStateRepository = (*SQLBatchStateRepository)(nil)

// NewSQLBatchStateRepository creates a new SQLBatchStateRepository.
func NewSQLBatchStateRepository(dbResolver database.DBConnectionResolver, dbName string) repository.BatchStateRepository {
	return &SQLBatchStateRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

func (r *SQLBatchStateRepository) db(ctx context.Context) (*gorm.DB, error) {
	return resolveGormDB(ctx, r.dbResolver, r.dbName)
}

func (r *SQLBatchStateRepository) SaveBatchState(ctx context.Context, state *model.BatchState) error {
	const op = "SQLBatchStateRepository.SaveBatchState"
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	entity := fromDomainBatchState(state)
	if err := db.Create(entity).Error; err != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to save batch state (ID: %s)", state.ID), err, false, true)
	}
	return nil
}

func (r *SQLBatchStateRepository) UpdateBatchState(ctx context.Context, state *model.BatchState) error {
	const op = "SQLBatchStateRepository.UpdateBatchState"
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	state.UpdatedAt = time.Now()
	entity := fromDomainBatchState(state)
	result := db.Model(&BatchStateEntity{}).Where("id = ?", entity.ID).Select("*").Omit("id", "created_at").Updates(entity)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update batch state (ID: %s)", state.ID), result.Error, false, true)
	}
	if result.RowsAffected == 0 {
		return exception.ErrBatchNotFound
	}
	return nil
}

func (r *SQLBatchStateRepository) FindBatchStateByID(ctx context.Context, id string) (*model.BatchState, error) {
	const op = "SQLBatchStateRepository.FindBatchStateByID"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entity BatchStateEntity
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exception.ErrBatchNotFound
		}
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return nil, exception.ErrBatchNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find batch state (ID: %s)", id), err, false, true)
	}
	return toDomainBatchState(&entity), nil
}

func (r *SQLBatchStateRepository) FindBatchStateByDate(ctx context.Context, date time.Time) (*model.BatchState, error) {
	const op = "SQLBatchStateRepository.FindBatchStateByDate"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entity BatchStateEntity
	if err := db.Where("batch_date = ?", model.NormalizeBatchDate(date)).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, exception.ErrBatchNotFound
		}
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return nil, exception.ErrBatchNotFound
		}
		return nil, exception.NewBatchError(op, fmt.Sprintf("failed to find batch state for date %s", date.Format("2006-01-02")), err, false, true)
	}
	return toDomainBatchState(&entity), nil
}

func (r *SQLBatchStateRepository) FindBatchesReadyToResume(ctx context.Context, now time.Time) ([]*model.BatchState, error) {
	const op = "SQLBatchStateRepository.FindBatchesReadyToResume"
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	var entities []BatchStateEntity
	err = db.
		Where("status = ?", string(model.BatchStatusDelayed)).
		Where("delayed_until IS NOT NULL AND delayed_until <= ?", now).
		Where("auto_resume_enabled = ?", true).
		Where("manual_intervention_required = ?", false).
		Order("batch_date ASC").
		Find(&entities).Error
	if err != nil {
		if isTableNotExistError(ctx, r.dbResolver, r.dbName, err) {
			return nil, nil
		}
		return nil, exception.NewBatchError(op, "failed to find batches ready to resume", err, false, true)
	}

	states := make([]*model.BatchState, 0, len(entities))
	for i := range entities {
		states = append(states, toDomainBatchState(&entities[i]))
	}
	return states, nil
}

func (r *SQLBatchStateRepository) UpdateStatus(ctx context.Context, id string, status model.BatchStatus, errorMessage *string) error {
	const op = "SQLBatchStateRepository.UpdateStatus"
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	return r.applyUpdates(ctx, op, id, updates)
}

func (r *SQLBatchStateRepository) UpdatePhase(ctx context.Context, id string, phase model.Phase, status model.PhaseStatus) error {
	const op = "SQLBatchStateRepository.UpdatePhase"
	column := "registration_phase"
	if phase == model.PhaseImageDownload {
		column = "image_download_phase"
	}
	return r.applyUpdates(ctx, op, id, map[string]interface{}{
		column:       string(status),
		"updated_at": time.Now(),
	})
}

func (r *SQLBatchStateRepository) UpdateProgress(ctx context.Context, id string, processedPages, failedPages int) error {
	const op = "SQLBatchStateRepository.UpdateProgress"
	return r.applyUpdates(ctx, op, id, map[string]interface{}{
		"processed_pages": processedPages,
		"failed_pages":    failedPages,
		"updated_at":      time.Now(),
	})
}

func (r *SQLBatchStateRepository) UpdateTotalPages(ctx context.Context, id string, totalPages int) error {
	const op = "SQLBatchStateRepository.UpdateTotalPages"
	return r.applyUpdates(ctx, op, id, map[string]interface{}{
		"total_pages": totalPages,
		"updated_at":  time.Now(),
	})
}

func (r *SQLBatchStateRepository) SetDelay(ctx context.Context, id string, until time.Time, retryAttempts int) error {
	const op = "SQLBatchStateRepository.SetDelay"
	return r.applyUpdates(ctx, op, id, map[string]interface{}{
		"status":         string(model.BatchStatusDelayed),
		"delayed_until":  until,
		"retry_attempts": retryAttempts,
		"updated_at":     time.Now(),
	})
}

func (r *SQLBatchStateRepository) ResetDelay(ctx context.Context, id string, now time.Time) error {
	const op = "SQLBatchStateRepository.ResetDelay"
	return r.applyUpdates(ctx, op, id, map[string]interface{}{
		"delayed_until":  now,
		"retry_attempts": 0,
		"updated_at":     time.Now(),
	})
}

func (r *SQLBatchStateRepository) SetManualIntervention(ctx context.Context, id string, required bool, errorMessage *string) error {
	const op = "SQLBatchStateRepository.SetManualIntervention"
	updates := map[string]interface{}{
		"manual_intervention_required": required,
		"updated_at":                   time.Now(),
	}
	if required {
		updates["status"] = string(model.BatchStatusManualIntervention)
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	return r.applyUpdates(ctx, op, id, updates)
}

// applyUpdates performs a partial column update against one batch state row.
func (r *SQLBatchStateRepository) applyUpdates(ctx context.Context, op, id string, updates map[string]interface{}) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&BatchStateEntity{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return exception.NewBatchError(op, fmt.Sprintf("failed to update batch state (ID: %s)", id), result.Error, false, true)
	}
	if result.RowsAffected == 0 {
		return exception.ErrBatchNotFound
	}
	return nil
}
