package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	"github.com/tigerroll/comical/pkg/batch/infrastructure/repository/inmemory"
)

type partialRetryFixture struct {
	svc    *service.PartialRetryService
	states *inmemory.InMemoryBatchStateRepository
	errors *inmemory.InMemoryPageErrorRepository
	state  *model.BatchState
}

func newPartialRetryFixture(t *testing.T) *partialRetryFixture {
	t.Helper()

	states := inmemory.NewInMemoryBatchStateRepository()
	pageErrors := inmemory.NewInMemoryPageErrorRepository()
	state := model.NewBatchState(time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, states.SaveBatchState(context.Background(), state))

	return &partialRetryFixture{
		svc:    service.NewPartialRetryService(states, pageErrors),
		states: states,
		errors: pageErrors,
		state:  state,
	}
}

func (f *partialRetryFixture) addError(t *testing.T, page int, phase model.Phase) {
	t.Helper()
	pe := model.NewBatchPageError(f.state.ID, page, phase, "http", "status 500")
	require.NoError(t, f.errors.UpsertPageError(context.Background(), pe))
}

func TestResetPageRange_DeletesOnlyRangeAndPhase(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	f.addError(t, 2, model.PhaseRegistration)
	f.addError(t, 3, model.PhaseRegistration)
	f.addError(t, 7, model.PhaseRegistration)
	f.addError(t, 3, model.PhaseImageDownload)

	deleted, err := f.svc.ResetPageRange(ctx, f.state.ID, 2, 5, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := f.errors.FindUnresolvedErrorPages(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, remaining)

	// The other phase's record for page 3 is untouched.
	imagePages, err := f.errors.FindUnresolvedErrorPages(ctx, f.state.ID, model.PhaseImageDownload)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, imagePages)
}

func TestResetPageRange_LeavesCountersUntouched(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.UpdateProgress(ctx, f.state.ID, 5, 2))
	f.addError(t, 4, model.PhaseRegistration)

	_, err := f.svc.ResetPageRange(ctx, f.state.ID, 4, 4, model.PhaseRegistration)
	require.NoError(t, err)

	updated, err := f.states.FindBatchStateByID(ctx, f.state.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.ProcessedPages)
	assert.Equal(t, 2, updated.FailedPages)
}

func TestResetPageRange_RejectsInvalidRange(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResetPageRange(ctx, f.state.ID, 0, 5, model.PhaseRegistration)
	assert.Error(t, err)

	_, err = f.svc.ResetPageRange(ctx, f.state.ID, 5, 2, model.PhaseRegistration)
	assert.Error(t, err)
}

func TestGetErrorPages_SortedDistinct(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	f.addError(t, 9, model.PhaseRegistration)
	f.addError(t, 3, model.PhaseRegistration)
	// A repeated failure on page 3 must not duplicate the entry.
	f.addError(t, 3, model.PhaseRegistration)

	pages, err := f.svc.GetErrorPages(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 9}, pages)
}

func TestResetErrorPagesOnly_DecrementsFailedCounter(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.UpdateProgress(ctx, f.state.ID, 10, 3))
	f.addError(t, 2, model.PhaseRegistration)
	f.addError(t, 5, model.PhaseRegistration)

	pages, err := f.svc.ResetErrorPagesOnly(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, pages)

	updated, err := f.states.FindBatchStateByID(ctx, f.state.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.ProcessedPages)
	assert.Equal(t, 1, updated.FailedPages)

	remaining, err := f.errors.CountUnresolvedErrors(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestResetErrorPagesOnly_FailedCounterFloorsAtZero(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.UpdateProgress(ctx, f.state.ID, 10, 1))
	f.addError(t, 2, model.PhaseRegistration)
	f.addError(t, 5, model.PhaseRegistration)
	f.addError(t, 8, model.PhaseRegistration)

	_, err := f.svc.ResetErrorPagesOnly(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)

	updated, err := f.states.FindBatchStateByID(ctx, f.state.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.FailedPages)
}

func TestResetErrorPagesOnly_NoErrorsIsNoOp(t *testing.T) {
	f := newPartialRetryFixture(t)

	pages, err := f.svc.ResetErrorPagesOnly(context.Background(), f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestMarkPagesSuccessful(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	f.addError(t, 2, model.PhaseRegistration)
	f.addError(t, 5, model.PhaseRegistration)

	require.NoError(t, f.svc.MarkPagesSuccessful(ctx, f.state.ID, []int{2}, model.PhaseRegistration))

	pages, err := f.errors.FindUnresolvedErrorPages(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, pages)
}

func TestGetRetryStatistics(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.UpdateTotalPages(ctx, f.state.ID, 40))
	require.NoError(t, f.states.UpdateProgress(ctx, f.state.ID, 38, 2))
	f.addError(t, 12, model.PhaseRegistration)
	f.addError(t, 17, model.PhaseRegistration)
	f.addError(t, 17, model.PhaseImageDownload)

	stats, err := f.svc.GetRetryStatistics(ctx, f.state.ID)
	require.NoError(t, err)
	assert.Equal(t, f.state.ID, stats.BatchID)
	assert.Equal(t, 40, stats.TotalPages)
	assert.Equal(t, 38, stats.ProcessedPages)
	assert.Equal(t, 2, stats.FailedPages)
	assert.Equal(t, 2, stats.RegistrationErrors)
	assert.Equal(t, 1, stats.ImageDownloadErrors)
	assert.True(t, stats.CanRetry)
}

func TestGetRetryStatistics_ManualInterventionBlocksRetry(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.SetManualIntervention(ctx, f.state.ID, true, nil))

	stats, err := f.svc.GetRetryStatistics(ctx, f.state.ID)
	require.NoError(t, err)
	assert.False(t, stats.CanRetry)
}

func TestResetBatchForFullRetry(t *testing.T) {
	f := newPartialRetryFixture(t)
	ctx := context.Background()

	require.NoError(t, f.states.UpdateTotalPages(ctx, f.state.ID, 40))
	require.NoError(t, f.states.UpdateProgress(ctx, f.state.ID, 38, 2))
	require.NoError(t, f.states.UpdatePhase(ctx, f.state.ID, model.PhaseRegistration, model.PhaseStatusCompleted))
	require.NoError(t, f.states.UpdatePhase(ctx, f.state.ID, model.PhaseImageDownload, model.PhaseStatusFailed))
	require.NoError(t, f.states.UpdateStatus(ctx, f.state.ID, model.BatchStatusFailed, nil))
	f.addError(t, 12, model.PhaseRegistration)
	f.addError(t, 17, model.PhaseImageDownload)

	require.NoError(t, f.svc.ResetBatchForFullRetry(ctx, f.state.ID))

	updated, err := f.states.FindBatchStateByID(ctx, f.state.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusPending, updated.Status)
	assert.Equal(t, model.PhaseStatusPending, updated.RegistrationPhase)
	assert.Equal(t, model.PhaseStatusPending, updated.ImageDownloadPhase)
	assert.Zero(t, updated.ProcessedPages)
	assert.Zero(t, updated.FailedPages)

	regErrors, err := f.errors.CountUnresolvedErrors(ctx, f.state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Zero(t, regErrors)
	imgErrors, err := f.errors.CountUnresolvedErrors(ctx, f.state.ID, model.PhaseImageDownload)
	require.NoError(t, err)
	assert.Zero(t, imgErrors)
}
