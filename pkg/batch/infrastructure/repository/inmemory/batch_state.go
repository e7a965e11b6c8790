// Package inmemory provides in-memory implementations of the domain
// repositories, intended for local development and tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/comical/pkg/batch/core/domain/repository"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
)

// InMemoryBatchStateRepository implements repository.BatchStateRepository with a mutex-guarded map.
type InMemoryBatchStateRepository struct {
	mu     sync.RWMutex
	states map[string]*model.BatchState // keyed by batch ID
}

var _ repository.BatchStateRepository = (*InMemoryBatchStateRepository)(nil)

// NewInMemoryBatchStateRepository creates an empty InMemoryBatchStateRepository.
func NewInMemoryBatchStateRepository() *InMemoryBatchStateRepository {
	return &InMemoryBatchStateRepository{
		states: make(map[string]*model.BatchState),
	}
}

func (r *InMemoryBatchStateRepository) SaveBatchState(_ context.Context, state *model.BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *state
	r.states[state.ID] = &copied
	return nil
}

func (r *InMemoryBatchStateRepository) UpdateBatchState(_ context.Context, state *model.BatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[state.ID]; !ok {
		return exception.ErrBatchNotFound
	}
	copied := *state
	copied.UpdatedAt = time.Now()
	r.states[state.ID] = &copied
	return nil
}

func (r *InMemoryBatchStateRepository) FindBatchStateByID(_ context.Context, id string) (*model.BatchState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.states[id]
	if !ok {
		return nil, exception.ErrBatchNotFound
	}
	copied := *state
	return &copied, nil
}

func (r *InMemoryBatchStateRepository) FindBatchStateByDate(_ context.Context, date time.Time) (*model.BatchState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	normalized := model.NormalizeBatchDate(date)
	for _, state := range r.states {
		if state.BatchDate.Equal(normalized) {
			copied := *state
			return &copied, nil
		}
	}
	return nil, exception.ErrBatchNotFound
}

func (r *InMemoryBatchStateRepository) FindBatchesReadyToResume(_ context.Context, now time.Time) ([]*model.BatchState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ready []*model.BatchState
	for _, state := range r.states {
		if state.Status != model.BatchStatusDelayed {
			continue
		}
		if state.DelayedUntil == nil || state.DelayedUntil.After(now) {
			continue
		}
		if !state.AutoResumeEnabled || state.ManualInterventionRequired {
			continue
		}
		copied := *state
		ready = append(ready, &copied)
	}
	return ready, nil
}

func (r *InMemoryBatchStateRepository) UpdateStatus(_ context.Context, id string, status model.BatchStatus, errorMessage *string) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.Status = status
		if errorMessage != nil {
			state.ErrorMessage = *errorMessage
		}
	})
}

func (r *InMemoryBatchStateRepository) UpdatePhase(_ context.Context, id string, phase model.Phase, status model.PhaseStatus) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.SetPhaseStatus(phase, status)
	})
}

func (r *InMemoryBatchStateRepository) UpdateProgress(_ context.Context, id string, processedPages, failedPages int) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.ProcessedPages = processedPages
		state.FailedPages = failedPages
	})
}

func (r *InMemoryBatchStateRepository) UpdateTotalPages(_ context.Context, id string, totalPages int) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.TotalPages = &totalPages
	})
}

func (r *InMemoryBatchStateRepository) SetDelay(_ context.Context, id string, until time.Time, retryAttempts int) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.Status = model.BatchStatusDelayed
		state.DelayedUntil = &until
		state.RetryAttempts = retryAttempts
	})
}

func (r *InMemoryBatchStateRepository) ResetDelay(_ context.Context, id string, now time.Time) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.DelayedUntil = &now
		state.RetryAttempts = 0
	})
}

func (r *InMemoryBatchStateRepository) SetManualIntervention(_ context.Context, id string, required bool, errorMessage *string) error {
	return r.mutate(id, func(state *model.BatchState) {
		state.ManualInterventionRequired = required
		if required {
			state.Status = model.BatchStatusManualIntervention
		}
		if errorMessage != nil {
			state.ErrorMessage = *errorMessage
		}
	})
}

// mutate applies fn to a stored batch state under the write lock.
func (r *InMemoryBatchStateRepository) mutate(id string, fn func(*model.BatchState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[id]
	if !ok {
		return exception.ErrBatchNotFound
	}
	fn(state)
	state.UpdatedAt = time.Now()
	return nil
}
