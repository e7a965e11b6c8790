package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/tigerroll/comical/pkg/batch/core/config"
	job "github.com/tigerroll/comical/pkg/batch/engine/job"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

// errorResponse is the JSON error payload shared by all endpoints.
type errorResponse struct {
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server is the HTTP trigger server hosting the manual batch endpoints, the
// health check and the Prometheus scrape endpoint.
type Server struct {
	service  *TriggerService
	registry *prometheus.Registry
	apiKey   string
	server   *http.Server
}

// NewServer creates the trigger server.
func NewServer(service *TriggerService, registry *prometheus.Registry, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		registry: registry,
		apiKey:   cfg.Comical.Batch.Trigger.APIKey,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/batch/registration", s.authenticated(s.handleTriggerRegistration))
	mux.HandleFunc("POST /api/batch/images", s.authenticated(s.handleTriggerImages))
	mux.HandleFunc("POST /api/batch/registration/partial", s.authenticated(s.handlePartialRetry))
	mux.HandleFunc("POST /api/batch/reset-intervention", s.authenticated(s.handleResetIntervention))
	mux.HandleFunc("GET /api/batch/status", s.authenticated(s.handleStatus))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         cfg.Comical.Batch.Trigger.Address,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		logger.Infof("Trigger server listening on %s.", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Trigger server failed: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	logger.Infof("Shutting down trigger server.")
	return s.server.Shutdown(ctx)
}

// authenticated wraps a handler with X-Api-Key validation. An empty
// configured key disables authentication.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			provided := r.Header.Get("X-Api-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(s.apiKey)) != 1 {
				logger.Warnf("Rejected request to %s: invalid API key.", r.URL.Path)
				writeJSON(w, http.StatusUnauthorized, errorResponse{
					Error:     "Unauthorized",
					Details:   "A valid X-Api-Key header is required.",
					Timestamp: time.Now().UTC(),
				})
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleTriggerRegistration(w http.ResponseWriter, r *http.Request) {
	s.handleTrigger(w, r, job.JobKindRegistration)
}

func (s *Server) handleTriggerImages(w http.ResponseWriter, r *http.Request) {
	s.handleTrigger(w, r, job.JobKindImageDownload)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request, kind job.JobKind) {
	result, err := s.service.TriggerJob(r.Context(), kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handlePartialRetry(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	startPageStr := query.Get("startPage")
	endPageStr := query.Get("endPage")
	if startPageStr == "" || endPageStr == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "Missing required parameters",
			Details:   "Both startPage and endPage query parameters are required",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	startPage, err1 := strconv.Atoi(startPageStr)
	endPage, err2 := strconv.Atoi(endPageStr)
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "Invalid parameter format",
			Details:   "startPage and endPage must be valid integers",
			Timestamp: time.Now().UTC(),
		})
		return
	}

	result, err := s.service.TriggerPartialRetry(r.Context(), startPage, endPage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (s *Server) handleResetIntervention(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batchId")
	resolvedID, err := s.service.ResetIntervention(r.Context(), batchID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   fmt.Sprintf("Manual intervention cleared for batch %s. Job will auto-resume on next scheduled run.", resolvedID),
		"batchId":   resolvedID,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	batchID := r.URL.Query().Get("batchId")
	report, err := s.service.Status(r.Context(), batchID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"jobType": s.service.Kind().String(),
	})
}

// writeError maps service errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, exception.ErrBatchNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:     "Batch not found",
			Details:   "No batch found for today. Provide a specific batchId query parameter.",
			Timestamp: time.Now().UTC(),
		})
		return
	}
	logger.Errorf("Trigger request failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:     "Internal server error",
		Details:   exception.ExtractErrorMessage(err),
		Timestamp: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
