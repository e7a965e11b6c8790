// Package trigger exposes the HTTP surface for manually launching jobs,
// partial retries and intervention management.
package trigger

import (
	"context"
	"fmt"
	"time"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// TriggerResult is the outcome of a manual trigger request.
type TriggerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	BatchID string `json:"batchId,omitempty"`
	JobKind string `json:"jobType,omitempty"`
}

// TriggerService validates manual trigger requests and launches the driver
// in the background. Each worker process hosts one driver, so triggers for
// the other job kind are rejected here.
type TriggerService struct {
	states     *service.BatchStateService
	scheduling *service.JobSchedulingService
	partial    *service.PartialRetryService
	driver     *job.Driver
}

// NewTriggerService creates the trigger service around this worker's driver.
func NewTriggerService(
	states *service.BatchStateService,
	scheduling *service.JobSchedulingService,
	partial *service.PartialRetryService,
	driver *job.Driver,
) *TriggerService {
	return &TriggerService{states: states, scheduling: scheduling, partial: partial, driver: driver}
}

// Kind returns the job kind this worker serves.
func (s *TriggerService) Kind() job.JobKind {
	return s.driver.Kind()
}

// TriggerJob validates and launches a run of the given kind for today's
// batch. The validation happens synchronously; the run itself continues in
// the background after the method returns.
func (s *TriggerService) TriggerJob(ctx context.Context, kind job.JobKind) (TriggerResult, error) {
	if kind != s.driver.Kind() {
		return TriggerResult{
			Success: false,
			Message: fmt.Sprintf("this worker runs %s jobs; trigger the %s worker instead", s.driver.Kind(), kind),
			JobKind: kind.String(),
		}, nil
	}

	logger.Infof("Manual %s job trigger requested.", kind)

	state, err := s.states.GetOrCreate(ctx, time.Now())
	if err != nil {
		return TriggerResult{}, err
	}

	proceed, reason, err := s.scheduling.CanProceed(ctx, state.ID, kind.Phase())
	if err != nil {
		return TriggerResult{}, err
	}
	if !proceed {
		return TriggerResult{
			Success: false,
			Message: fmt.Sprintf("job cannot proceed: %s", reason),
			BatchID: state.ID,
			JobKind: kind.String(),
		}, nil
	}

	if state.PhaseStatusOf(kind.Phase()) == model.PhaseStatusCompleted {
		return TriggerResult{
			Success: true,
			Message: fmt.Sprintf("%s phase already completed", kind),
			BatchID: state.ID,
			JobKind: kind.String(),
		}, nil
	}

	s.launch(ctx, state.BatchDate)
	return TriggerResult{
		Success: true,
		Message: fmt.Sprintf("%s job triggered successfully. Job is now running in the background.", kind),
		BatchID: state.ID,
		JobKind: kind.String(),
	}, nil
}

// PartialRetryResult is the outcome of a partial retry request.
type PartialRetryResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	BatchID   string `json:"batchId,omitempty"`
	StartPage int    `json:"startPage"`
	EndPage   int    `json:"endPage"`
	PageCount int    `json:"pageCount"`
}

// TriggerPartialRetry rewinds today's checkpoint to the given page range and
// relaunches the registration driver in the background.
func (s *TriggerService) TriggerPartialRetry(ctx context.Context, startPage, endPage int) (PartialRetryResult, error) {
	if s.driver.Kind() != job.JobKindRegistration {
		return PartialRetryResult{
			Success:   false,
			Message:   "partial retry is only available on the registration worker",
			StartPage: startPage,
			EndPage:   endPage,
		}, nil
	}
	if startPage < 1 || endPage < startPage {
		return PartialRetryResult{
			Success:   false,
			Message:   fmt.Sprintf("invalid page range: %d-%d. Start page must be >= 1 and end page must be >= start page.", startPage, endPage),
			StartPage: startPage,
			EndPage:   endPage,
		}, nil
	}

	logger.Infof("Manual partial retry requested for pages %d-%d.", startPage, endPage)

	state, err := s.states.GetByDate(ctx, time.Now())
	if err != nil {
		return PartialRetryResult{}, err
	}

	if _, err := s.partial.ResetPageRange(ctx, state.ID, startPage, endPage, model.PhaseRegistration); err != nil {
		return PartialRetryResult{}, err
	}
	if err := s.states.UpdatePhase(ctx, state.ID, model.PhaseRegistration, model.PhaseStatusRunning); err != nil {
		return PartialRetryResult{}, err
	}

	pageCount := endPage - startPage + 1
	s.launch(ctx, state.BatchDate)
	return PartialRetryResult{
		Success:   true,
		Message:   fmt.Sprintf("Partial retry triggered for pages %d-%d (%d pages). Job is now running in the background.", startPage, endPage, pageCount),
		BatchID:   state.ID,
		StartPage: startPage,
		EndPage:   endPage,
		PageCount: pageCount,
	}, nil
}

// ResetIntervention clears the manual intervention flag for the given batch,
// or for today's batch when batchID is empty.
func (s *TriggerService) ResetIntervention(ctx context.Context, batchID string) (string, error) {
	if batchID == "" {
		state, err := s.states.GetByDate(ctx, time.Now())
		if err != nil {
			return "", err
		}
		batchID = state.ID
	}

	if err := s.scheduling.ClearManualIntervention(ctx, batchID); err != nil {
		return "", err
	}
	return batchID, nil
}

// BatchStatusView is the JSON shape of a batch state on the status endpoint.
type BatchStatusView struct {
	ID                         string     `json:"id"`
	BatchDate                  string     `json:"batchDate"`
	Status                     string     `json:"status"`
	TotalPages                 *int       `json:"totalPages"`
	ProcessedPages             int        `json:"processedPages"`
	FailedPages                int        `json:"failedPages"`
	RegistrationPhase          string     `json:"registrationPhase"`
	ImageDownloadPhase         string     `json:"imageDownloadPhase"`
	DelayedUntil               *time.Time `json:"delayedUntil,omitempty"`
	RetryAttempts              int        `json:"retryAttempts"`
	ManualInterventionRequired bool       `json:"manualInterventionRequired"`
	AutoResumeEnabled          bool       `json:"autoResumeEnabled"`
	ErrorMessage               string     `json:"errorMessage,omitempty"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

func newBatchStatusView(state *model.BatchState) *BatchStatusView {
	return &BatchStatusView{
		ID:                         state.ID,
		BatchDate:                  state.BatchDate.Format("2006-01-02"),
		Status:                     string(state.Status),
		TotalPages:                 state.TotalPages,
		ProcessedPages:             state.ProcessedPages,
		FailedPages:                state.FailedPages,
		RegistrationPhase:          string(state.RegistrationPhase),
		ImageDownloadPhase:         string(state.ImageDownloadPhase),
		DelayedUntil:               state.DelayedUntil,
		RetryAttempts:              state.RetryAttempts,
		ManualInterventionRequired: state.ManualInterventionRequired,
		AutoResumeEnabled:          state.AutoResumeEnabled,
		ErrorMessage:               state.ErrorMessage,
		UpdatedAt:                  state.UpdatedAt,
	}
}

// StatusReport is the payload of the status endpoint.
type StatusReport struct {
	Batch      *BatchStatusView       `json:"batch"`
	Statistics *model.RetryStatistics `json:"statistics"`
}

// Status returns the batch state and retry statistics for the given batch,
// or for today's batch when batchID is empty.
func (s *TriggerService) Status(ctx context.Context, batchID string) (*StatusReport, error) {
	var (
		state *model.BatchState
		err   error
	)
	if batchID == "" {
		state, err = s.states.GetByDate(ctx, time.Now())
	} else {
		state, err = s.states.Get(ctx, batchID)
	}
	if err != nil {
		return nil, err
	}

	stats, err := s.partial.GetRetryStatistics(ctx, state.ID)
	if err != nil {
		return nil, err
	}
	return &StatusReport{Batch: newBatchStatusView(state), Statistics: stats}, nil
}

// launch runs the driver in the background, detached from the request context.
func (s *TriggerService) launch(ctx context.Context, date time.Time) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.driver.RunForDate(runCtx, date); err != nil {
			logger.Errorf("Background %s run failed: %v", s.driver.Kind(), err)
		}
	}()
}
