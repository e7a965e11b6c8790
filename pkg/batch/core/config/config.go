package config

// Package config provides structures and utilities for managing application configuration.

import "time"

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
// It is used to control the verbosity of log output.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// SchedulingConfig holds configuration for batch retry scheduling.
type SchedulingConfig struct {
	// MaxRetryAttempts is the number of automatic retries before a batch is
	// escalated to manual intervention.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	// BackoffMinutes is the delay ladder applied per retry attempt, in minutes.
	// Attempt N (0-based) uses BackoffMinutes[N]; attempts beyond the ladder use the last entry.
	BackoffMinutes []int `yaml:"backoff_minutes"`
	// ResumePollingIntervalSeconds is the interval at which the resume scheduler
	// polls for delayed batches whose backoff has expired.
	ResumePollingIntervalSeconds int `yaml:"resume_polling_interval_seconds"`
}

// JobConfig holds per-job pacing configuration.
type JobConfig struct {
	// RegistrationIntervalSeconds is the minimum spacing between catalog page
	// fetches during registration.
	RegistrationIntervalSeconds int `yaml:"registration_interval_seconds"`
	// ImageIntervalSeconds is the minimum spacing between catalog page fetches
	// during image download.
	ImageIntervalSeconds int `yaml:"image_interval_seconds"`
}

// CatalogConfig holds configuration for the upstream catalog API client.
type CatalogConfig struct {
	// Endpoint is the base URL of the catalog search API.
	Endpoint string `yaml:"endpoint"`
	// ApplicationID is the API credential sent with every request.
	ApplicationID string `yaml:"application_id"`
	// GenreID restricts the search to a single catalog genre.
	GenreID string `yaml:"genre_id"`
	// PageSize is the number of items requested per page.
	PageSize int `yaml:"page_size"`
	// TimeoutSeconds is the per-request HTTP timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// TriggerConfig holds configuration for the HTTP trigger server.
type TriggerConfig struct {
	// Address is the listen address of the trigger server (e.g., ":8080").
	Address string `yaml:"address"`
	// APIKey protects the trigger endpoints. Requests must present it in the
	// X-Api-Key header. An empty value disables authentication.
	APIKey string `yaml:"api_key"`
}

// ReportConfig holds configuration for the page error report exporter.
type ReportConfig struct {
	// Enabled toggles report generation at the end of a run.
	Enabled bool `yaml:"enabled"`
	// Prefix is the object key prefix under which reports are stored.
	Prefix string `yaml:"prefix"`
	// StorageRef is the name of the storage adapter reports are written to
	// (a key of the storage section).
	StorageRef string `yaml:"storage_ref"`
	// CompressionType is the Parquet compression codec ("SNAPPY", "GZIP", "NONE").
	CompressionType string `yaml:"compression_type"`
}

// TracingConfig holds configuration for the OTLP trace exporter.
type TracingConfig struct {
	// Enabled toggles trace export. When false a no-op tracer is installed.
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS on the exporter connection.
	Insecure bool `yaml:"insecure"`
	// ServiceName identifies this worker in exported traces.
	ServiceName string `yaml:"service_name"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// Scheduling is the retry scheduling configuration.
	Scheduling SchedulingConfig `yaml:"scheduling"`
	// Job is the per-job pacing configuration.
	Job JobConfig `yaml:"job"`
	// Catalog is the catalog API client configuration.
	Catalog CatalogConfig `yaml:"catalog"`
	// Trigger is the HTTP trigger server configuration.
	Trigger TriggerConfig `yaml:"trigger"`
	// Report is the page error report configuration.
	Report ReportConfig `yaml:"report"`
	// Tracing is the trace export configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	// Batch dates are derived in this timezone.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// BatchStateDBRef is the name of the DBConnection used by the batch state
	// repositories (a key of the database section).
	BatchStateDBRef string `yaml:"batch_state_db_ref"`
	// ImageStorageRef is the name of the storage adapter used for cover images
	// (a key of the storage section).
	ImageStorageRef string `yaml:"image_storage_ref"`
}

// ComicalConfig holds all configuration under the "comical" top-level key.
type ComicalConfig struct {
	// Batch contains batch processing specific configurations.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// AdaptorConfigs holds configurations for database connections, keyed by logical name.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds configurations for storage adapters, keyed by logical name.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Comical contains the top-level configuration for the Comical batch worker.
	Comical ComicalConfig `yaml:"comical"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// Location resolves the configured timezone into a *time.Location.
// An empty timezone resolves to UTC.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Comical.System.Timezone
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// Backoff returns the retry delay for the given 0-based attempt number.
// Attempts beyond the configured ladder use its last entry.
func (s SchedulingConfig) Backoff(attempt int) time.Duration {
	if len(s.BackoffMinutes) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(s.BackoffMinutes) {
		attempt = len(s.BackoffMinutes) - 1
	}
	return time.Duration(s.BackoffMinutes[attempt]) * time.Minute
}

// ResumePollingInterval returns the resume scheduler polling interval as a duration.
func (s SchedulingConfig) ResumePollingInterval() time.Duration {
	return time.Duration(s.ResumePollingIntervalSeconds) * time.Second
}

// RegistrationInterval returns the registration pacing interval as a duration.
func (j JobConfig) RegistrationInterval() time.Duration {
	return time.Duration(j.RegistrationIntervalSeconds) * time.Second
}

// ImageInterval returns the image download pacing interval as a duration.
func (j JobConfig) ImageInterval() time.Duration {
	return time.Duration(j.ImageIntervalSeconds) * time.Second
}

// Timeout returns the catalog HTTP timeout as a duration.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GlobalConfig is a pointer to the configuration instance shared across the application.
// It is expected to be set via fx.Supply or fx.Provide.
var GlobalConfig *Config

// NewConfig returns a new instance of Config with default values.
//
// Returns:
//
//	A pointer to a new Config instance initialized with default settings.
func NewConfig() *Config {
	cfg := &Config{
		Comical: ComicalConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				Scheduling: SchedulingConfig{
					MaxRetryAttempts:             3,
					BackoffMinutes:               []int{5, 15, 30},
					ResumePollingIntervalSeconds: 60,
				},
				Job: JobConfig{
					RegistrationIntervalSeconds: 120,
					ImageIntervalSeconds:        30,
				},
				Catalog: CatalogConfig{
					PageSize:       30,
					TimeoutSeconds: 30,
				},
				Trigger: TriggerConfig{
					Address: ":8080",
				},
				Report: ReportConfig{
					Prefix:          "reports",
					StorageRef:      "images",
					CompressionType: "SNAPPY",
				},
				Tracing: TracingConfig{
					ServiceName: "comical-batch",
				},
			},
			Infrastructure: InfrastructureConfig{
				BatchStateDBRef: "batchdb",
				ImageStorageRef: "images",
			},
		},
	}

	// Initialize adaptor maps as empty, to be populated by YAML or by mergeConfig.
	cfg.Comical.AdaptorConfigs = map[string]interface{}{}
	cfg.Comical.StorageConfigs = map[string]interface{}{}
	return cfg
}
