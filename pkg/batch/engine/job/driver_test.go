package job_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	"github.com/tigerroll/comical/pkg/batch/core/metrics"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	"github.com/tigerroll/comical/pkg/batch/infrastructure/repository/inmemory"
)

// pageRecorder is a page operation that records the pages it was called with
// and fails the pages listed in failPages.
type pageRecorder struct {
	mu        sync.Mutex
	pages     []int
	failPages map[int]bool
}

func (r *pageRecorder) process(_ context.Context, page int) error {
	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()
	if r.failPages[page] {
		return fmt.Errorf("simulated failure on page %d", page)
	}
	return nil
}

func (r *pageRecorder) processed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.pages...)
}

type driverFixture struct {
	states     *service.BatchStateService
	scheduling *service.JobSchedulingService
	partial    *service.PartialRetryService
	stateRepo  *inmemory.InMemoryBatchStateRepository
	errorRepo  *inmemory.InMemoryPageErrorRepository
	recorder   *pageRecorder
}

func newDriverFixture(t *testing.T) *driverFixture {
	t.Helper()

	stateRepo := inmemory.NewInMemoryBatchStateRepository()
	errorRepo := inmemory.NewInMemoryPageErrorRepository()
	cfg := config.NewConfig()

	return &driverFixture{
		states:     service.NewBatchStateService(stateRepo, errorRepo),
		scheduling: service.NewJobSchedulingService(stateRepo, cfg),
		partial:    service.NewPartialRetryService(stateRepo, errorRepo),
		stateRepo:  stateRepo,
		errorRepo:  errorRepo,
		recorder:   &pageRecorder{failPages: map[int]bool{}},
	}
}

// registrationDriver builds a registration driver with checkpoint resume, a
// fixed page count and a negligible pacing interval.
func (f *driverFixture) registrationDriver(totalPages int) *job.Driver {
	return job.NewDriverWithOperation(
		job.JobKindRegistration,
		f.states,
		f.scheduling,
		job.NewCheckpointResume(f.states),
		func(context.Context) (int, error) { return totalPages, nil },
		f.recorder.process,
		time.Millisecond,
		metrics.NewNoOpMetricRecorder(),
		metrics.NewNoOpTracer(),
	)
}

func (f *driverFixture) imageDriver(totalPages int) *job.Driver {
	return job.NewDriverWithOperation(
		job.JobKindImageDownload,
		f.states,
		f.scheduling,
		job.NewScanResume(),
		func(context.Context) (int, error) { return totalPages, nil },
		f.recorder.process,
		time.Millisecond,
		metrics.NewNoOpMetricRecorder(),
		metrics.NewNoOpTracer(),
	)
}

func (f *driverFixture) todaysState(t *testing.T) *model.BatchState {
	t.Helper()
	state, err := f.states.GetByDate(context.Background(), time.Now())
	require.NoError(t, err)
	return state
}

func TestDriver_AllPagesSucceed(t *testing.T) {
	f := newDriverFixture(t)
	driver := f.registrationDriver(3)

	require.NoError(t, driver.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, f.recorder.processed())

	state := f.todaysState(t)
	assert.Equal(t, model.BatchStatusCompleted, state.Status)
	assert.Equal(t, model.PhaseStatusCompleted, state.RegistrationPhase)
	assert.Equal(t, 3, state.ProcessedPages)
	assert.Equal(t, 0, state.FailedPages)
	assert.Equal(t, 0, state.RetryAttempts)
	require.NotNil(t, state.TotalPages)
	assert.Equal(t, 3, *state.TotalPages)
}

func TestDriver_PageFailureIsRecordedAndLoopContinues(t *testing.T) {
	f := newDriverFixture(t)
	f.recorder.failPages[2] = true
	driver := f.registrationDriver(3)

	require.NoError(t, driver.Run(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, f.recorder.processed())

	state := f.todaysState(t)
	// Completed with failures: the phase is done but the batch is not a clean success.
	assert.Equal(t, model.PhaseStatusCompleted, state.RegistrationPhase)
	assert.Equal(t, 2, state.ProcessedPages)
	assert.Equal(t, 1, state.FailedPages)

	pages, err := f.partial.GetErrorPages(context.Background(), state.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, pages)
}

func TestDriver_ResumesFromCheckpoint(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()

	// A previous run got through 2 of 5 pages before being interrupted.
	state, err := f.states.GetOrCreate(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusRunning))
	require.NoError(t, f.states.UpdateProgress(ctx, state.ID, 2, 0))

	driver := f.registrationDriver(5)
	require.NoError(t, driver.Run(ctx))

	// Pages 1 and 2 are not reprocessed.
	assert.Equal(t, []int{3, 4, 5}, f.recorder.processed())

	final := f.todaysState(t)
	assert.Equal(t, model.BatchStatusCompleted, final.Status)
	assert.Equal(t, 5, final.ProcessedPages)
}

func TestDriver_ImageDownloadAlwaysStartsAtPageOne(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()

	// Registration finished earlier; its counters stay at the registration totals.
	state, err := f.states.GetOrCreate(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusCompleted))
	require.NoError(t, f.states.UpdateProgress(ctx, state.ID, 3, 0))

	driver := f.imageDriver(3)
	require.NoError(t, driver.Run(ctx))

	assert.Equal(t, []int{1, 2, 3}, f.recorder.processed())

	final := f.todaysState(t)
	assert.Equal(t, model.BatchStatusCompleted, final.Status)
	assert.Equal(t, model.PhaseStatusCompleted, final.ImageDownloadPhase)
	// The image job never touches the shared progress counters.
	assert.Equal(t, 3, final.ProcessedPages)
	assert.Equal(t, 0, final.FailedPages)
}

func TestDriver_ImageDownloadBlockedUntilRegistrationCompletes(t *testing.T) {
	f := newDriverFixture(t)
	driver := f.imageDriver(3)

	require.NoError(t, driver.Run(context.Background()))

	assert.Empty(t, f.recorder.processed())

	state := f.todaysState(t)
	assert.Equal(t, model.PhaseStatusPending, state.ImageDownloadPhase)
}

func TestDriver_SkipsCompletedPhase(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()

	state, err := f.states.GetOrCreate(ctx, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusCompleted))

	driver := f.registrationDriver(3)
	require.NoError(t, driver.Run(ctx))

	assert.Empty(t, f.recorder.processed())
}

func TestDriver_PageCountFailureSchedulesRetry(t *testing.T) {
	f := newDriverFixture(t)
	driver := job.NewDriverWithOperation(
		job.JobKindRegistration,
		f.states,
		f.scheduling,
		job.NewCheckpointResume(f.states),
		func(context.Context) (int, error) { return 0, errors.New("catalog unreachable") },
		f.recorder.process,
		time.Millisecond,
		metrics.NewNoOpMetricRecorder(),
		metrics.NewNoOpTracer(),
	)

	err := driver.Run(context.Background())
	require.Error(t, err)

	state := f.todaysState(t)
	assert.Equal(t, model.BatchStatusDelayed, state.Status)
	assert.Equal(t, 1, state.RetryAttempts)
	require.NotNil(t, state.DelayedUntil)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), *state.DelayedUntil, 5*time.Second)
}

func TestDriver_CancellationAtPageBoundaryLeavesRunning(t *testing.T) {
	f := newDriverFixture(t)
	driver := f.registrationDriver(100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, driver.Run(ctx))
	}()

	// Let a couple of pages through, then cancel.
	require.Eventually(t, func() bool {
		return len(f.recorder.processed()) >= 2
	}, 5*time.Second, time.Millisecond)
	cancel()
	<-done

	state := f.todaysState(t)
	assert.Equal(t, model.BatchStatusRunning, state.Status)
	assert.Equal(t, model.PhaseStatusRunning, state.RegistrationPhase)
	assert.Less(t, state.ProcessedPages, 100)
	assert.Equal(t, state.ProcessedPages, len(f.recorder.processed()))
}

func TestDriver_PartialRetryRoundTrip(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()

	// First run fails page 2.
	f.recorder.failPages[2] = true
	driver := f.registrationDriver(3)
	require.NoError(t, driver.Run(ctx))

	state := f.todaysState(t)
	require.Equal(t, 1, state.FailedPages)

	// Operator resets the failing page and rewinds the checkpoint to re-run it.
	_, err := f.partial.ResetPageRange(ctx, state.ID, 2, 2, model.PhaseRegistration)
	require.NoError(t, err)
	require.NoError(t, f.states.UpdateProgress(ctx, state.ID, 1, 0))
	require.NoError(t, f.states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusRunning))

	delete(f.recorder.failPages, 2)
	f.recorder.pages = nil

	require.NoError(t, driver.Run(ctx))
	assert.Equal(t, []int{2, 3}, f.recorder.processed())

	final := f.todaysState(t)
	assert.Equal(t, model.BatchStatusCompleted, final.Status)
	assert.Equal(t, 3, final.ProcessedPages)
	assert.Equal(t, 0, final.FailedPages)

	pages, err := f.partial.GetErrorPages(ctx, final.ID, model.PhaseRegistration)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDriver_FullRetryRoundTrip(t *testing.T) {
	f := newDriverFixture(t)
	ctx := context.Background()

	f.recorder.failPages[1] = true
	driver := f.registrationDriver(2)
	require.NoError(t, driver.Run(ctx))

	state := f.todaysState(t)
	require.NoError(t, f.partial.ResetBatchForFullRetry(ctx, state.ID))

	delete(f.recorder.failPages, 1)
	f.recorder.pages = nil

	require.NoError(t, driver.Run(ctx))
	assert.Equal(t, []int{1, 2}, f.recorder.processed())

	final := f.todaysState(t)
	assert.Equal(t, model.BatchStatusCompleted, final.Status)
	assert.Equal(t, 2, final.ProcessedPages)
	assert.Equal(t, 0, final.FailedPages)
}
