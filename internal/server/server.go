package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/ratefit/internal/fit"
	"github.com/cwbudde/ratefit/internal/store"
)

// Server is the calibration job server: REST for job control, SSE and
// websockets for live progress, JSONL trace downloads.
type Server struct {
	jobManager      *JobManager
	checkpointStore *store.FSStore // nil disables persistence
	hub             *WSHub
	addr            string
	server          *http.Server
}

// NewServer creates a new HTTP server. checkpointDir may be empty to
// disable checkpoint and trace persistence.
func NewServer(addr, checkpointDir string) (*Server, error) {
	var checkpointStore *store.FSStore
	if checkpointDir != "" {
		st, err := store.NewFSStore(checkpointDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		checkpointStore = st
	}

	jm := NewJobManager()
	hub := NewWSHub()
	jm.SetHub(hub)

	return &Server{
		jobManager:      jm,
		checkpointStore: checkpointStore,
		hub:             hub,
		addr:            addr,
	}, nil
}

// Start starts the HTTP server and the websocket hub.
func (s *Server) Start() error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/ws", s.handleWS)
	mux.HandleFunc("/api/v1/healthz", s.handleHealthz)

	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleJobsWithID handles /api/v1/jobs/{id} and its subresources
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "job ID required")
		return
	}

	jobID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetJobStatus(w, r, jobID)
		case http.MethodDelete:
			s.handleCancelJob(w, r, jobID)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch parts[1] {
	case "status":
		s.handleGetJobStatus(w, r, jobID)
	case "stream":
		s.handleJobStream(w, r, jobID)
	case "trace":
		s.handleGetJobTrace(w, r, jobID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	// Fill omitted fields with the default scenario, then validate.
	defaults := fit.DefaultSettings()
	if config.H0 == 0 {
		config.H0 = defaults.H0
	}
	if config.Tol == 0 {
		config.Tol = defaults.Tol
	}
	if config.Beta == 0 {
		config.Beta = defaults.Beta
	}
	if config.Horizon == 0 {
		config.Horizon = defaults.Horizon
	}
	if config.Backend == "" {
		config.Backend = string(fit.BackendImFilter)
	}

	if err := settingsFromConfig(config).Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.RegisterCancel(job.ID, cancel)
	go runJob(ctx, s.jobManager, s.checkpointStore, job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/{id}
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	response := map[string]interface{}{
		"id":        job.ID,
		"state":     job.State,
		"config":    job.Config,
		"bestX":     job.BestX,
		"bestLoss":  job.BestLoss,
		"outer":     job.Outer,
		"stencil":   job.Stencil,
		"evals":     job.Evals,
		"rounds":    job.Rounds,
		"converged": job.Converged,
		"elapsed":   elapsed.Seconds(),
		"startTime": job.StartTime,
		"endTime":   job.EndTime,
		"error":     job.Error,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleCancelJob handles DELETE /api/v1/jobs/{id}
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if !s.jobManager.CancelJob(jobID) {
		writeError(w, http.StatusConflict, "job is not cancellable")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     jobID,
		"status": "cancelling",
	})
}

// handleGetJobTrace handles GET /api/v1/jobs/{id}/trace, serving the
// job's iteration trace as a JSONL download.
func (s *Server) handleGetJobTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.checkpointStore == nil {
		writeError(w, http.StatusNotFound, "persistence disabled")
		return
	}
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-trace.jsonl"`, jobID))
	http.ServeFile(w, r, store.TracePath(s.checkpointStore.BaseDir(), jobID))
}

// handleWS handles GET /api/v1/ws?job={id}
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job query parameter required")
		return
	}
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	serveWS(s.hub, w, r, jobID)
}

// handleHealthz handles GET /api/v1/healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"jobs":        len(s.jobManager.ListJobs()),
		"running":     len(s.jobManager.GetRunningJobs()),
		"ws_clients":  s.hub.ClientCount(),
		"persistence": s.checkpointStore != nil,
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
