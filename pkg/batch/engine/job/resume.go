package job

import (
	"context"

	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// ResumeStrategy decides where a run starts and how per-page progress is
// checkpointed. Registration trusts the persisted page counter; image download
// always rescans from the first page because completeness is derived from
// object-storage presence, with already-downloaded images skipped per item.
type ResumeStrategy interface {
	// StartPage returns the 1-based page the loop starts at.
	StartPage(state *model.BatchState) int

	// InitialCounters returns the successful/failed page counters the loop
	// starts from.
	InitialCounters(state *model.BatchState) (successful, failed int)

	// Checkpoint persists the counters after a page outcome. A no-op for
	// strategies that do not track progress in the batch state.
	Checkpoint(ctx context.Context, batchID string, successful, failed int) error

	// Completed reports whether the counters amount to a fully processed batch.
	Completed(successful, totalPages int) bool
}

// checkpointResume is the registration strategy: resume from the persisted
// counter and write it back after every page.
type checkpointResume struct {
	progress ProgressWriter
}

// ProgressWriter persists the page counters of a batch.
type ProgressWriter interface {
	UpdateProgress(ctx context.Context, batchID string, processedPages, failedPages int) error
}

// NewCheckpointResume creates the counter-based resume strategy.
func NewCheckpointResume(progress ProgressWriter) ResumeStrategy {
	return &checkpointResume{progress: progress}
}

func (r *checkpointResume) StartPage(state *model.BatchState) int {
	return state.ProcessedPages + 1
}

func (r *checkpointResume) InitialCounters(state *model.BatchState) (int, int) {
	return state.ProcessedPages, state.FailedPages
}

func (r *checkpointResume) Checkpoint(ctx context.Context, batchID string, successful, failed int) error {
	return r.progress.UpdateProgress(ctx, batchID, successful, failed)
}

// Completed uses >= because a resumed run starts its counter at the persisted
// checkpoint, which may already cover the final page.
func (r *checkpointResume) Completed(successful, totalPages int) bool {
	return successful >= totalPages
}

// scanResume is the image download strategy: every run revisits all pages and
// relies on per-item idempotence, so nothing is checkpointed.
type scanResume struct{}

// NewScanResume creates the storage-presence resume strategy.
func NewScanResume() ResumeStrategy {
	return &scanResume{}
}

func (r *scanResume) StartPage(_ *model.BatchState) int {
	return 1
}

func (r *scanResume) InitialCounters(_ *model.BatchState) (int, int) {
	return 0, 0
}

func (r *scanResume) Checkpoint(_ context.Context, _ string, _, _ int) error {
	return nil
}

func (r *scanResume) Completed(successful, totalPages int) bool {
	return successful == totalPages
}
