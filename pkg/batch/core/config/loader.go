package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
//
// Parameters:
//   envFilePath: The path to the .env file.
//   embeddedConfig: The embedded configuration bytes.
// Returns:
//   A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Load defaults from NewConfig()

	// 2. Expand ${VAR} placeholders in the embedded YAML, then load it into a
	// temporary Config struct so YAML values are parsed into their proper types.
	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment variables in embedded config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	// 3. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}

	if err := validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It initializes the application configuration by loading defaults,
// merging from embedded YAML, and overriding with environment variables.
// It also sets the global logger level.
//
// Parameters:
//   params: ConfigParams containing dependencies like embedded config and env file path.
// Returns:
//   A pointer to the initialized Config and an error if configuration loading or validation fails.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load configuration", err, false, false)
	}

	// Set global configuration
	GlobalConfig = cfg

	// Set log level
	logger.SetLogLevel(cfg.Comical.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Comical.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
//
// Parameters:
//   envFilePath: The path to the .env file.
//   embeddedConfig: The embedded configuration bytes.
// Returns:
//   A pointer to the loaded Config and an error if loading fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validate performs sanity checks on values that would otherwise fail deep
// inside the scheduler or the drivers.
func validate(cfg *Config) error {
	s := cfg.Comical.Batch.Scheduling
	if s.MaxRetryAttempts < 1 {
		return fmt.Errorf("scheduling.max_retry_attempts must be >= 1, got %d", s.MaxRetryAttempts)
	}
	if len(s.BackoffMinutes) == 0 {
		return fmt.Errorf("scheduling.backoff_minutes must not be empty")
	}
	for i, m := range s.BackoffMinutes {
		if m <= 0 {
			return fmt.Errorf("scheduling.backoff_minutes[%d] must be positive, got %d", i, m)
		}
	}
	j := cfg.Comical.Batch.Job
	if j.RegistrationIntervalSeconds < 0 || j.ImageIntervalSeconds < 0 {
		return fmt.Errorf("job intervals must not be negative")
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("invalid system.timezone %q: %w", cfg.Comical.System.Timezone, err)
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
//
// Parameters:
//   destConfig: The destination Config to merge into.
//   sourceConfig: The source Config to merge from.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeComicalConfig(&destConfig.Comical, &sourceConfig.Comical)
}

// mergeComicalConfig merges source into dest.
func mergeComicalConfig(dest, source *ComicalConfig) {
	mergeSchedulingConfig(&dest.Batch.Scheduling, &source.Batch.Scheduling)
	mergeJobConfig(&dest.Batch.Job, &source.Batch.Job)
	mergeCatalogConfig(&dest.Batch.Catalog, &source.Batch.Catalog)
	mergeTriggerConfig(&dest.Batch.Trigger, &source.Batch.Trigger)
	mergeReportConfig(&dest.Batch.Report, &source.Batch.Report)
	mergeTracingConfig(&dest.Batch.Tracing, &source.Batch.Tracing)

	mergeSystemConfig(&dest.System, &source.System)

	if source.Infrastructure.BatchStateDBRef != "" {
		dest.Infrastructure.BatchStateDBRef = source.Infrastructure.BatchStateDBRef
	}
	if source.Infrastructure.ImageStorageRef != "" {
		dest.Infrastructure.ImageStorageRef = source.Infrastructure.ImageStorageRef
	}

	// Merge adaptor maps (this is the critical part for database and storage configs).
	if source.AdaptorConfigs != nil {
		if dest.AdaptorConfigs == nil {
			dest.AdaptorConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdaptorConfigs {
			dest.AdaptorConfigs[key] = value
		}
	}
	if source.StorageConfigs != nil {
		if dest.StorageConfigs == nil {
			dest.StorageConfigs = make(map[string]interface{})
		}
		for key, value := range source.StorageConfigs {
			dest.StorageConfigs[key] = value
		}
	}
}

// mergeSchedulingConfig merges source into dest.
func mergeSchedulingConfig(dest, source *SchedulingConfig) {
	if source.MaxRetryAttempts != 0 { dest.MaxRetryAttempts = source.MaxRetryAttempts }
	if source.BackoffMinutes != nil { dest.BackoffMinutes = source.BackoffMinutes }
	if source.ResumePollingIntervalSeconds != 0 { dest.ResumePollingIntervalSeconds = source.ResumePollingIntervalSeconds }
}

// mergeJobConfig merges source into dest.
func mergeJobConfig(dest, source *JobConfig) {
	if source.RegistrationIntervalSeconds != 0 { dest.RegistrationIntervalSeconds = source.RegistrationIntervalSeconds }
	if source.ImageIntervalSeconds != 0 { dest.ImageIntervalSeconds = source.ImageIntervalSeconds }
}

// mergeCatalogConfig merges source into dest.
func mergeCatalogConfig(dest, source *CatalogConfig) {
	if source.Endpoint != "" { dest.Endpoint = source.Endpoint }
	if source.ApplicationID != "" { dest.ApplicationID = source.ApplicationID }
	if source.GenreID != "" { dest.GenreID = source.GenreID }
	if source.PageSize != 0 { dest.PageSize = source.PageSize }
	if source.TimeoutSeconds != 0 { dest.TimeoutSeconds = source.TimeoutSeconds }
}

// mergeTriggerConfig merges source into dest.
func mergeTriggerConfig(dest, source *TriggerConfig) {
	if source.Address != "" { dest.Address = source.Address }
	if source.APIKey != "" { dest.APIKey = source.APIKey }
}

// mergeReportConfig merges source into dest.
func mergeReportConfig(dest, source *ReportConfig) {
	if source.Enabled { dest.Enabled = true }
	if source.Prefix != "" { dest.Prefix = source.Prefix }
	if source.StorageRef != "" { dest.StorageRef = source.StorageRef }
	if source.CompressionType != "" { dest.CompressionType = source.CompressionType }
}

// mergeTracingConfig merges source into dest.
func mergeTracingConfig(dest, source *TracingConfig) {
	if source.Enabled { dest.Enabled = true }
	if source.Insecure { dest.Insecure = true }
	if source.Endpoint != "" { dest.Endpoint = source.Endpoint }
	if source.ServiceName != "" { dest.ServiceName = source.ServiceName }
}

// mergeSystemConfig merges source into dest.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" { dest.Timezone = source.Timezone }
	if source.Logging.Level != "" { dest.Logging.Level = source.Logging.Level }
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//   val: The reflect.Value of the struct to populate.
//   prefix: The prefix for environment variable names (e.g., "COMICAL_BATCH_").
// Returns: An error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists && field.Kind() != reflect.Map { // If it's a map type, continue to process nested environment variables.
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String {
			// For maps, process nested environment variables
			// Example: COMICAL_DATABASE_BATCHDB_HOST
			if err := loadMapFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv loads entries of a map[string]interface{} field from environment variables.
// It infers map keys and entry field names from environment variable names.
//
// Example: an environment variable `COMICAL_DATABASE_BATCHDB_HOST=localhost` sets the
// "host" key of the map entry "batchdb".
//
// Parameters:
//   mapField: The reflect.Value of the map field (e.g., `cfg.Comical.AdaptorConfigs`).
//   prefix: The environment variable prefix for this map (e.g., "COMICAL_DATABASE_").
func loadMapFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0] // e.g., "BATCHDB_HOST"
		envValue := parts[1]

		keyAndFieldParts := strings.SplitN(keyAndField, "_", 2)
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])   // e.g., "batchdb"
		entryField := strings.ToLower(keyAndFieldParts[1]) // e.g., "host"

		var entry map[string]interface{}
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				entry = m
			}
		}
		if entry == nil {
			entry = map[string]interface{}{}
		}
		entry[entryField] = envValue
		mapField.SetMapIndex(reflect.ValueOf(mapKey), reflect.ValueOf(interface{}(entry)))
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
//
// Parameters:
//   field: The reflect.Value of the field to set.
//   value: The string value to convert and set.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
