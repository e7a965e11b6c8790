package sql

import (
	"github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// --- Mapper functions ---

func fromDomainBatchState(b *model.BatchState) *BatchStateEntity {
	if b == nil {
		return nil
	}
	return &BatchStateEntity{
		ID:                         b.ID,
		BatchDate:                  b.BatchDate,
		Status:                     string(b.Status),
		TotalPages:                 b.TotalPages,
		ProcessedPages:             b.ProcessedPages,
		FailedPages:                b.FailedPages,
		RegistrationPhase:          string(b.RegistrationPhase),
		ImageDownloadPhase:         string(b.ImageDownloadPhase),
		DelayedUntil:               b.DelayedUntil,
		RetryAttempts:              b.RetryAttempts,
		ManualInterventionRequired: b.ManualInterventionRequired,
		AutoResumeEnabled:          b.AutoResumeEnabled,
		ErrorMessage:               b.ErrorMessage,
		CreatedAt:                  b.CreatedAt,
		UpdatedAt:                  b.UpdatedAt,
	}
}

func toDomainBatchState(entity *BatchStateEntity) *model.BatchState {
	if entity == nil {
		return nil
	}
	return &model.BatchState{
		ID:                         entity.ID,
		BatchDate:                  entity.BatchDate,
		Status:                     model.BatchStatus(entity.Status),
		TotalPages:                 entity.TotalPages,
		ProcessedPages:             entity.ProcessedPages,
		FailedPages:                entity.FailedPages,
		RegistrationPhase:          model.PhaseStatus(entity.RegistrationPhase),
		ImageDownloadPhase:         model.PhaseStatus(entity.ImageDownloadPhase),
		DelayedUntil:               entity.DelayedUntil,
		RetryAttempts:              entity.RetryAttempts,
		ManualInterventionRequired: entity.ManualInterventionRequired,
		AutoResumeEnabled:          entity.AutoResumeEnabled,
		ErrorMessage:               entity.ErrorMessage,
		CreatedAt:                  entity.CreatedAt,
		UpdatedAt:                  entity.UpdatedAt,
	}
}

func fromDomainPageError(e *model.BatchPageError) *BatchPageErrorEntity {
	if e == nil {
		return nil
	}
	return &BatchPageErrorEntity{
		ID:           e.ID,
		BatchID:      e.BatchID,
		PageNumber:   e.PageNumber,
		Phase:        string(e.Phase),
		ErrorType:    e.ErrorType,
		ErrorMessage: e.ErrorMessage,
		RetryCount:   e.RetryCount,
		LastRetryAt:  e.LastRetryAt,
		Resolved:     e.Resolved,
		ResolvedAt:   e.ResolvedAt,
		CreatedAt:    e.CreatedAt,
	}
}

func toDomainPageError(entity *BatchPageErrorEntity) *model.BatchPageError {
	if entity == nil {
		return nil
	}
	return &model.BatchPageError{
		ID:           entity.ID,
		BatchID:      entity.BatchID,
		PageNumber:   entity.PageNumber,
		Phase:        model.Phase(entity.Phase),
		ErrorType:    entity.ErrorType,
		ErrorMessage: entity.ErrorMessage,
		RetryCount:   entity.RetryCount,
		LastRetryAt:  entity.LastRetryAt,
		Resolved:     entity.Resolved,
		ResolvedAt:   entity.ResolvedAt,
		CreatedAt:    entity.CreatedAt,
	}
}

func fromDomainComic(c *model.Comic) *ComicEntity {
	if c == nil {
		return nil
	}
	return &ComicEntity{
		ISBN:      c.ISBN,
		Title:     c.Title,
		Author:    c.Author,
		Publisher: c.Publisher,
		SalesDate: c.SalesDate,
		ImageURL:  c.ImageURL,
		Price:     c.Price,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toDomainComic(entity *ComicEntity) *model.Comic {
	if entity == nil {
		return nil
	}
	return &model.Comic{
		ISBN:      entity.ISBN,
		Title:     entity.Title,
		Author:    entity.Author,
		Publisher: entity.Publisher,
		SalesDate: entity.SalesDate,
		ImageURL:  entity.ImageURL,
		Price:     entity.Price,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
	}
}
