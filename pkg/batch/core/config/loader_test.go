package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/comical/pkg/batch/core/config"
)

func TestLoadConfig_DefaultsWithEmptyYAML(t *testing.T) {
	cfg, err := config.LoadConfig("", config.EmbeddedConfig("comical: {}"))
	require.NoError(t, err)

	s := cfg.Comical.Batch.Scheduling
	assert.Equal(t, 3, s.MaxRetryAttempts)
	assert.Equal(t, []int{5, 15, 30}, s.BackoffMinutes)
	assert.Equal(t, 5*time.Minute, s.Backoff(0))
	assert.Equal(t, 15*time.Minute, s.Backoff(1))
	assert.Equal(t, 30*time.Minute, s.Backoff(2))
	// Attempts past the ladder reuse the last step.
	assert.Equal(t, 30*time.Minute, s.Backoff(7))

	j := cfg.Comical.Batch.Job
	assert.Equal(t, 120*time.Second, j.RegistrationInterval())
	assert.Equal(t, 30*time.Second, j.ImageInterval())
}

func TestLoadConfig_YAMLOverridesDefaults(t *testing.T) {
	yamlDoc := `
comical:
  batch:
    scheduling:
      max_retry_attempts: 5
      backoff_minutes: [1, 2]
      resume_polling_interval_seconds: 10
    job:
      registration_interval_seconds: 1
      image_interval_seconds: 2
    catalog:
      endpoint: "https://catalog.example/search"
      application_id: "app-123"
  system:
    timezone: "Asia/Tokyo"
    logging:
      level: "DEBUG"
`
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(yamlDoc))
	require.NoError(t, err)

	s := cfg.Comical.Batch.Scheduling
	assert.Equal(t, 5, s.MaxRetryAttempts)
	assert.Equal(t, []int{1, 2}, s.BackoffMinutes)
	assert.Equal(t, 10*time.Second, s.ResumePollingInterval())

	assert.Equal(t, time.Second, cfg.Comical.Batch.Job.RegistrationInterval())
	assert.Equal(t, 2*time.Second, cfg.Comical.Batch.Job.ImageInterval())
	assert.Equal(t, "https://catalog.example/search", cfg.Comical.Batch.Catalog.Endpoint)
	assert.Equal(t, "app-123", cfg.Comical.Batch.Catalog.ApplicationID)
	assert.Equal(t, "DEBUG", cfg.Comical.System.Logging.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoadConfig_ExpandsEnvironmentPlaceholders(t *testing.T) {
	t.Setenv("TEST_CATALOG_APP_ID", "expanded-app-id")

	yamlDoc := `
comical:
  batch:
    catalog:
      application_id: "${TEST_CATALOG_APP_ID}"
`
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(yamlDoc))
	require.NoError(t, err)
	assert.Equal(t, "expanded-app-id", cfg.Comical.Batch.Catalog.ApplicationID)
}

func TestLoadConfig_EnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("COMICAL_BATCH_SCHEDULING_MAX_RETRY_ATTEMPTS", "7")
	t.Setenv("COMICAL_SYSTEM_LOGGING_LEVEL", "ERROR")

	yamlDoc := `
comical:
  batch:
    scheduling:
      max_retry_attempts: 4
`
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(yamlDoc))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Comical.Batch.Scheduling.MaxRetryAttempts)
	assert.Equal(t, "ERROR", cfg.Comical.System.Logging.Level)
}

func TestLoadConfig_DatabaseEntriesFromEnv(t *testing.T) {
	t.Setenv("COMICAL_DATABASE_BATCHDB_HOST", "db.internal")

	yamlDoc := `
comical:
  database:
    batchdb:
      type: postgres
      host: localhost
`
	cfg, err := config.LoadConfig("", config.EmbeddedConfig(yamlDoc))
	require.NoError(t, err)

	entry, ok := cfg.Comical.AdaptorConfigs["batchdb"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "db.internal", entry["host"])
}

func TestLoadConfig_RejectsInvalidScheduling(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{
			name: "zero backoff step",
			yaml: "comical:\n  batch:\n    scheduling:\n      backoff_minutes: [5, 0]\n",
		},
		{
			name: "bad timezone",
			yaml: "comical:\n  system:\n    timezone: \"Mars/Olympus\"\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadConfig("", config.EmbeddedConfig(tc.yaml))
			require.Error(t, err)
		})
	}
}
