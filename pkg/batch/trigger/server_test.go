package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	service "github.com/tigerroll/comical/pkg/batch/core/application/service"
	config "github.com/tigerroll/comical/pkg/batch/core/config"
	"github.com/tigerroll/comical/pkg/batch/core/metrics"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	"github.com/tigerroll/comical/pkg/batch/infrastructure/repository/inmemory"
)

func newTestServer(t *testing.T, apiKey string) *Server {
	t.Helper()

	stateRepo := inmemory.NewInMemoryBatchStateRepository()
	errorRepo := inmemory.NewInMemoryPageErrorRepository()
	cfg := config.NewConfig()
	cfg.Comical.Batch.Trigger.APIKey = apiKey

	states := service.NewBatchStateService(stateRepo, errorRepo)
	scheduling := service.NewJobSchedulingService(stateRepo, cfg)
	partial := service.NewPartialRetryService(stateRepo, errorRepo)

	driver := job.NewDriverWithOperation(
		job.JobKindRegistration,
		states,
		scheduling,
		job.NewCheckpointResume(states),
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context, int) error { return nil },
		time.Millisecond,
		metrics.NewNoOpMetricRecorder(),
		metrics.NewNoOpTracer(),
	)

	svc := NewTriggerService(states, scheduling, partial, driver)
	return NewServer(svc, prometheus.NewRegistry(), cfg)
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "registration", body["jobType"])
}

func TestServer_RejectsMissingAPIKey(t *testing.T) {
	srv := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/batch/registration", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AcceptsValidAPIKey(t *testing.T) {
	srv := newTestServer(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/batch/status", nil)
	req.Header.Set("X-Api-Key", "secret")
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	// No batch exists yet for today.
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StatusNotFoundForUnknownBatch(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/batch/status?batchId=nope", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Batch not found", body.Error)
}

func TestServer_PartialRetryValidatesParameters(t *testing.T) {
	srv := newTestServer(t, "")

	cases := []struct {
		name  string
		query string
	}{
		{name: "missing parameters", query: ""},
		{name: "non-numeric pages", query: "?startPage=a&endPage=b"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/batch/registration/partial"+tc.query, nil)
			rec := httptest.NewRecorder()
			srv.server.Handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServer_TriggerWrongKindReturnsBadRequest(t *testing.T) {
	srv := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/batch/images", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var result TriggerResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, "secret")

	// The scrape endpoint is never behind the API key.
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
