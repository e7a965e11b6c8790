// Package job implements the batch job drivers: the sequential page loop with
// rate limiting, checkpoint resume and per-page error recording, parameterized
// by job kind.
package job

import (
	"fmt"
	"time"

	config "github.com/tigerroll/comical/pkg/batch/core/config"
	model "github.com/tigerroll/comical/pkg/batch/core/domain/model"
)

// JobKind selects which phase a worker process serves. It is supplied
// explicitly at startup (command-line flag), never read from the environment
// inside the driver.
type JobKind string

const (
	JobKindRegistration  JobKind = "registration"
	JobKindImageDownload JobKind = "image_download"
)

// String returns the string representation of the JobKind.
func (k JobKind) String() string {
	return string(k)
}

// Phase returns the batch phase this job kind drives.
func (k JobKind) Phase() model.Phase {
	if k == JobKindImageDownload {
		return model.PhaseImageDownload
	}
	return model.PhaseRegistration
}

// Interval returns the configured rate-limit interval between pages for this job kind.
func (k JobKind) Interval(cfg *config.Config) time.Duration {
	if k == JobKindImageDownload {
		return cfg.Comical.Batch.Job.ImageInterval()
	}
	return cfg.Comical.Batch.Job.RegistrationInterval()
}

// ParseJobKind parses a job kind string as supplied on the command line.
func ParseJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case JobKindRegistration:
		return JobKindRegistration, nil
	case JobKindImageDownload:
		return JobKindImageDownload, nil
	default:
		return "", fmt.Errorf("unknown job kind %q (expected %q or %q)", s, JobKindRegistration, JobKindImageDownload)
	}
}
