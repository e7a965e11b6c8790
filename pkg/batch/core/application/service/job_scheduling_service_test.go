package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	"github.com/tigerroll/comical/pkg/batch/infrastructure/repository/inmemory"
)

func newSchedulingFixture(t *testing.T) (*service.JobSchedulingService, *inmemory.InMemoryBatchStateRepository, *model.BatchState) {
	t.Helper()

	states := inmemory.NewInMemoryBatchStateRepository()
	cfg := config.NewConfig()
	svc := service.NewJobSchedulingService(states, cfg)

	state := model.NewBatchState(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	require.NoError(t, states.SaveBatchState(context.Background(), state))
	return svc, states, state
}

func TestCanProceed_UnknownBatch(t *testing.T) {
	svc, _, _ := newSchedulingFixture(t)

	ok, reason, err := svc.CanProceed(context.Background(), "no-such-batch", model.PhaseRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "not found")
}

func TestCanProceed_ManualInterventionBlocks(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	require.NoError(t, states.SetManualIntervention(ctx, state.ID, true, nil))

	ok, reason, err := svc.CanProceed(ctx, state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "manual intervention")
}

func TestCanProceed_ActiveBackoffBlocks(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(10*time.Minute), 1))

	ok, reason, err := svc.CanProceed(ctx, state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "delayed until")
}

func TestCanProceed_ExpiredBackoffAdmits(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(-time.Minute), 1))

	ok, reason, err := svc.CanProceed(ctx, state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestCanProceed_ImageDownloadRequiresRegistration(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	ok, reason, err := svc.CanProceed(ctx, state.ID, model.PhaseImageDownload)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "registration phase must be completed")

	require.NoError(t, states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusCompleted))

	ok, _, err = svc.CanProceed(ctx, state.ID, model.PhaseImageDownload)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleJobFailure_BackoffLadder(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 5 * time.Minute},
		{attempts: 1, want: 15 * time.Minute},
		{attempts: 2, want: 30 * time.Minute},
	}

	for _, tc := range cases {
		svc, states, state := newSchedulingFixture(t)
		ctx := context.Background()

		if tc.attempts > 0 {
			require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(-time.Minute), tc.attempts))
		}

		willRetry, err := svc.HandleJobFailure(ctx, state.ID, model.PhaseRegistration, errors.New("catalog unreachable"))
		require.NoError(t, err)
		assert.True(t, willRetry, "attempt %d should still retry", tc.attempts)

		updated, err := states.FindBatchStateByID(ctx, state.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BatchStatusDelayed, updated.Status)
		assert.Equal(t, tc.attempts+1, updated.RetryAttempts)
		require.NotNil(t, updated.DelayedUntil)
		assert.WithinDuration(t, time.Now().Add(tc.want), *updated.DelayedUntil, 5*time.Second)
	}
}

func TestHandleJobFailure_EscalatesAfterMaxAttempts(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	// Three failed attempts already consumed the retry budget.
	require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(-time.Minute), 3))

	willRetry, err := svc.HandleJobFailure(ctx, state.ID, model.PhaseRegistration, errors.New("catalog unreachable"))
	require.NoError(t, err)
	assert.False(t, willRetry)

	updated, err := states.FindBatchStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.True(t, updated.ManualInterventionRequired)
	assert.Equal(t, model.BatchStatusManualIntervention, updated.Status)
	assert.Equal(t, model.PhaseStatusFailed, updated.RegistrationPhase)
	assert.Contains(t, updated.ErrorMessage, "max retry attempts reached")
}

func TestResetRetryCounter(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(30*time.Minute), 2))
	require.NoError(t, svc.ResetRetryCounter(ctx, state.ID))

	updated, err := states.FindBatchStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.RetryAttempts)
	require.NotNil(t, updated.DelayedUntil)
	assert.False(t, updated.DelayedUntil.After(time.Now()))
}

func TestGetBatchesReadyToResume_Filters(t *testing.T) {
	states := inmemory.NewInMemoryBatchStateRepository()
	svc := service.NewJobSchedulingService(states, config.NewConfig())
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	ready := model.NewBatchState(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	ready.Status = model.BatchStatusDelayed
	ready.DelayedUntil = &past

	stillWaiting := model.NewBatchState(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	stillWaiting.Status = model.BatchStatusDelayed
	stillWaiting.DelayedUntil = &future

	paused := model.NewBatchState(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC))
	paused.Status = model.BatchStatusDelayed
	paused.DelayedUntil = &past
	paused.ManualInterventionRequired = true

	optedOut := model.NewBatchState(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC))
	optedOut.Status = model.BatchStatusDelayed
	optedOut.DelayedUntil = &past
	optedOut.AutoResumeEnabled = false

	running := model.NewBatchState(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	running.Status = model.BatchStatusRunning

	for _, s := range []*model.BatchState{ready, stillWaiting, paused, optedOut, running} {
		require.NoError(t, states.SaveBatchState(ctx, s))
	}

	batches, err := svc.GetBatchesReadyToResume(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, ready.ID, batches[0].ID)
}

func TestClearManualIntervention(t *testing.T) {
	svc, states, state := newSchedulingFixture(t)
	ctx := context.Background()

	message := "max retry attempts reached"
	require.NoError(t, states.SetManualIntervention(ctx, state.ID, true, &message))
	require.NoError(t, states.SetDelay(ctx, state.ID, time.Now().Add(time.Hour), 3))
	// SetDelay flips status back to delayed; restore the manual intervention status.
	require.NoError(t, states.UpdateStatus(ctx, state.ID, model.BatchStatusManualIntervention, nil))

	require.NoError(t, svc.ClearManualIntervention(ctx, state.ID))

	updated, err := states.FindBatchStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.False(t, updated.ManualInterventionRequired)
	assert.Equal(t, model.BatchStatusPending, updated.Status)
	assert.Equal(t, 0, updated.RetryAttempts)

	// Clearing again is a no-op.
	require.NoError(t, svc.ClearManualIntervention(ctx, state.ID))

	again, err := states.FindBatchStateByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusPending, again.Status)
}
