package sql

import (
	"time"
)

// BatchStateEntity is a schema model used for persistence.
type BatchStateEntity struct {
	ID                         string `gorm:"primaryKey"`
	BatchDate                  time.Time
	Status                     string
	TotalPages                 *int
	ProcessedPages             int
	FailedPages                int
	RegistrationPhase          string
	ImageDownloadPhase         string
	DelayedUntil               *time.Time
	RetryAttempts              int
	ManualInterventionRequired bool
	AutoResumeEnabled          bool
	ErrorMessage               string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (BatchStateEntity) TableName() string {
	return "batch_states"
}

// BatchPageErrorEntity is a schema model used for persistence.
// The (batch_id, page_number, phase) triple is unique.
type BatchPageErrorEntity struct {
	ID           string `gorm:"primaryKey"`
	BatchID      string
	PageNumber   int
	Phase        string
	ErrorType    string
	ErrorMessage string
	RetryCount   int
	LastRetryAt  time.Time
	Resolved     bool
	ResolvedAt   *time.Time
	CreatedAt    time.Time
}

func (BatchPageErrorEntity) TableName() string {
	return "batch_page_errors"
}

// ComicEntity is a schema model used for persistence.
type ComicEntity struct {
	ISBN      string `gorm:"primaryKey;column:isbn"`
	Title     string
	Author    string
	Publisher string
	SalesDate string
	ImageURL  string `gorm:"column:image_url"`
	Price     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ComicEntity) TableName() string {
	return "comics"
}
