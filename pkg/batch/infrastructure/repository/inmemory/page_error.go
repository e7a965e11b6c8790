package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
)

type pageErrorKey struct {
	batchID string
	page    int
	phase   model.Phase
}

// InMemoryPageErrorRepository implements repository.PageErrorRepository with a mutex-guarded map.
type InMemoryPageErrorRepository struct {
	mu     sync.RWMutex
	errors map[pageErrorKey]*model.BatchPageError
}

var _ repository.PageErrorRepository = (*InMemoryPageErrorRepository)(nil)

// NewInMemoryPageErrorRepository creates an empty InMemoryPageErrorRepository.
func NewInMemoryPageErrorRepository() *InMemoryPageErrorRepository {
	return &InMemoryPageErrorRepository{
		errors: make(map[pageErrorKey]*model.BatchPageError),
	}
}

func (r *InMemoryPageErrorRepository) UpsertPageError(_ context.Context, pageError *model.BatchPageError) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pageErrorKey{batchID: pageError.BatchID, page: pageError.PageNumber, phase: pageError.Phase}
	if existing, ok := r.errors[key]; ok {
		existing.ErrorType = pageError.ErrorType
		existing.ErrorMessage = pageError.ErrorMessage
		existing.RetryCount++
		existing.LastRetryAt = time.Now()
		existing.Resolved = false
		existing.ResolvedAt = nil
		return nil
	}

	copied := *pageError
	r.errors[key] = &copied
	return nil
}

func (r *InMemoryPageErrorRepository) FindUnresolvedErrors(_ context.Context, batchID string, phase model.Phase) ([]*model.BatchPageError, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.BatchPageError
	for key, pe := range r.errors {
		if key.batchID == batchID && key.phase == phase && !pe.Resolved {
			copied := *pe
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PageNumber < result[j].PageNumber })
	return result, nil
}

func (r *InMemoryPageErrorRepository) FindUnresolvedErrorPages(_ context.Context, batchID string, phase model.Phase) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pages []int
	for key, pe := range r.errors {
		if key.batchID == batchID && key.phase == phase && !pe.Resolved {
			pages = append(pages, key.page)
		}
	}
	sort.Ints(pages)
	return pages, nil
}

func (r *InMemoryPageErrorRepository) CountUnresolvedErrors(_ context.Context, batchID string, phase model.Phase) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for key, pe := range r.errors {
		if key.batchID == batchID && key.phase == phase && !pe.Resolved {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryPageErrorRepository) MarkResolved(_ context.Context, batchID string, pages []int, phase model.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, page := range pages {
		key := pageErrorKey{batchID: batchID, page: page, phase: phase}
		if pe, ok := r.errors[key]; ok {
			pe.Resolved = true
			pe.ResolvedAt = &now
		}
	}
	return nil
}

func (r *InMemoryPageErrorRepository) DeletePageRange(_ context.Context, batchID string, startPage, endPage int, phase model.Phase) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key := range r.errors {
		if key.batchID == batchID && key.phase == phase && key.page >= startPage && key.page <= endPage {
			delete(r.errors, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *InMemoryPageErrorRepository) DeletePages(_ context.Context, batchID string, pages []int, phase model.Phase) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for _, page := range pages {
		key := pageErrorKey{batchID: batchID, page: page, phase: phase}
		if _, ok := r.errors[key]; ok {
			delete(r.errors, key)
			deleted++
		}
	}
	return deleted, nil
}

func (r *InMemoryPageErrorRepository) DeleteUnresolvedByBatch(_ context.Context, batchID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, pe := range r.errors {
		if key.batchID == batchID && !pe.Resolved {
			delete(r.errors, key)
			deleted++
		}
	}
	return deleted, nil
}
