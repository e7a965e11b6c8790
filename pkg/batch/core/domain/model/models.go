package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the overall state of a daily batch.
type BatchStatus string

const (
	BatchStatusPending            BatchStatus = "pending"
	BatchStatusRunning            BatchStatus = "running"
	BatchStatusCompleted          BatchStatus = "completed"
	BatchStatusFailed             BatchStatus = "failed"
	BatchStatusDelayed            BatchStatus = "delayed"
	BatchStatusManualIntervention BatchStatus = "manual_intervention"
)

// String returns the string representation of the BatchStatus.
func (s BatchStatus) String() string {
	return string(s)
}

// IsFinished checks if the BatchStatus represents a terminal state for automated processing.
// Delayed batches are not finished; they are waiting out a backoff window.
func (s BatchStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusManualIntervention:
		return true
	default:
		return false
	}
}

// PhaseStatus represents the state of one phase within a batch.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
)

// String returns the string representation of the PhaseStatus.
func (s PhaseStatus) String() string {
	return string(s)
}

// Phase identifies one of the two ordered sub-jobs within a batch.
type Phase string

const (
	PhaseRegistration  Phase = "registration"
	PhaseImageDownload Phase = "image_download"
)

// String returns the string representation of the Phase.
func (p Phase) String() string {
	return string(p)
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	return p == PhaseRegistration || p == PhaseImageDownload
}

// BatchState describes the progress of one calendar day's ingestion run.
// Exactly one BatchState exists per batch date.
type BatchState struct {
	// ID is the unique identifier of this batch.
	ID string
	// BatchDate is the calendar date this batch covers. Immutable after creation.
	// Only the date portion is significant; the time is normalized to midnight UTC.
	BatchDate time.Time
	// Status is the overall batch status.
	Status BatchStatus
	// TotalPages is the total page count once known; nil until the first catalog call reports it.
	TotalPages *int
	// ProcessedPages is the number of pages successfully processed. Monotonic within a run.
	ProcessedPages int
	// FailedPages is the number of pages that failed during the run.
	FailedPages int
	// RegistrationPhase is the status of the catalog registration phase.
	RegistrationPhase PhaseStatus
	// ImageDownloadPhase is the status of the cover image download phase.
	// It may only advance past pending once RegistrationPhase is completed.
	ImageDownloadPhase PhaseStatus
	// DelayedUntil is the earliest instant a delayed batch may proceed again.
	// Meaningful only together with Status == BatchStatusDelayed.
	DelayedUntil *time.Time
	// RetryAttempts counts consecutive automatic retries since the last success
	// or manual intervention clear.
	RetryAttempts int
	// ManualInterventionRequired blocks all proceed checks until cleared by an operator.
	ManualInterventionRequired bool
	// AutoResumeEnabled gates automatic resumption of delayed batches.
	AutoResumeEnabled bool
	// ErrorMessage holds the last recorded error text, if any.
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewBatchState creates a fresh BatchState for the given date with pending
// status, both phases pending, zero counters and auto-resume enabled.
func NewBatchState(date time.Time) *BatchState {
	now := time.Now()
	return &BatchState{
		ID:                 uuid.New().String(),
		BatchDate:          NormalizeBatchDate(date),
		Status:             BatchStatusPending,
		RegistrationPhase:  PhaseStatusPending,
		ImageDownloadPhase: PhaseStatusPending,
		AutoResumeEnabled:  true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NormalizeBatchDate strips the time-of-day portion of t, keeping the date in UTC.
func NormalizeBatchDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PhaseStatusOf returns the status of the given phase.
func (b *BatchState) PhaseStatusOf(phase Phase) PhaseStatus {
	if phase == PhaseImageDownload {
		return b.ImageDownloadPhase
	}
	return b.RegistrationPhase
}

// SetPhaseStatus updates the status of the given phase.
func (b *BatchState) SetPhaseStatus(phase Phase, status PhaseStatus) {
	if phase == PhaseImageDownload {
		b.ImageDownloadPhase = status
		return
	}
	b.RegistrationPhase = status
}

// BatchPageError records one page-level failure within a phase of a batch.
// At most one row exists per (batch, page, phase) triple; repeated failures
// upsert onto the same row, bumping RetryCount.
type BatchPageError struct {
	// ID is the unique identifier of this error record.
	ID string
	// BatchID references the owning BatchState.
	BatchID string
	// PageNumber is the 1-based page that failed.
	PageNumber int
	// Phase is the phase during which the failure occurred.
	Phase Phase
	// ErrorType classifies the failure (e.g., "http", "parse", "storage").
	ErrorType string
	// ErrorMessage holds the failure detail.
	ErrorMessage string
	// RetryCount is the number of times this page has failed.
	RetryCount int
	// LastRetryAt is the time of the most recent failure.
	LastRetryAt time.Time
	// Resolved marks the error as cleared by a later successful run or an explicit reset.
	Resolved   bool
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// NewBatchPageError creates a page error record for the given batch, page and phase.
func NewBatchPageError(batchID string, pageNumber int, phase Phase, errorType, errorMessage string) *BatchPageError {
	now := time.Now()
	return &BatchPageError{
		ID:           uuid.New().String(),
		BatchID:      batchID,
		PageNumber:   pageNumber,
		Phase:        phase,
		ErrorType:    errorType,
		ErrorMessage: errorMessage,
		RetryCount:   1,
		LastRetryAt:  now,
		CreatedAt:    now,
	}
}

// Comic is one catalog item ingested during registration.
type Comic struct {
	// ISBN is the unique item identifier and primary key.
	ISBN string
	// Title is the item title as reported by the catalog.
	Title string
	// Author is the primary author name.
	Author string
	// Publisher is the publishing label.
	Publisher string
	// SalesDate is the raw sales date string from the catalog (formats vary upstream).
	SalesDate string
	// ImageURL is the catalog-provided cover image URL.
	ImageURL string
	// Price is the list price in the catalog's currency.
	Price     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RetryStatistics summarizes a batch's retry posture for operators.
type RetryStatistics struct {
	BatchID        string `json:"batchId"`
	TotalPages     int    `json:"totalPages"`
	ProcessedPages int    `json:"processedPages"`
	FailedPages    int    `json:"failedPages"`
	// RegistrationErrors is the count of distinct pages with unresolved registration errors.
	RegistrationErrors int `json:"registrationErrors"`
	// ImageDownloadErrors is the count of distinct pages with unresolved image download errors.
	ImageDownloadErrors int `json:"imageDownloadErrors"`
	RetryAttempts       int `json:"retryAttempts"`
	// CanRetry is false while the batch requires manual intervention.
	CanRetry bool `json:"canRetry"`
}
