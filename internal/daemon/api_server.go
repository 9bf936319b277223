package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"panelcast/internal/api"
	"panelcast/internal/config"
	"panelcast/internal/jobs"
	"panelcast/internal/logging"
	"panelcast/internal/pipeline"
	"panelcast/internal/services"
)

// maxWait bounds the long-poll timeout a client may request.
const maxWait = 5 * time.Minute

type apiServer struct {
	bind         string
	generateWait time.Duration
	longPoll     time.Duration
	logger       *slog.Logger
	daemon       *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:         strings.TrimSpace(cfg.Paths.APIBind),
		generateWait: cfg.GenerateWait(),
		longPoll:     cfg.LongPoll(),
		logger:       logging.NewComponentLogger(logger, "api-server"),
		daemon:       d,
	}
	// Generate holds the connection for the whole server-side wait.
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      srv.generateWait + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/generate-manga", s.handleGenerate)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/current", s.handleCurrent)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/wait", s.handleWait)
		r.Delete("/workspace", s.handleClear)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LockFilePath:  status.LockFilePath,
		JournalPath:   status.JournalPath,
		WorkspaceRoot: status.WorkspaceRoot,
		Stages:        api.StageHealthViews(status.Stages),
		Dependencies:  api.DependencyViews(status.Dependencies),
	}
	if status.Job != nil {
		view := api.FromSnapshot(*status.Job)
		payload.Job = &view
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handleGenerate submits a job and holds the request until it finishes or the
// configured wait elapses. A timed out or disconnected caller leaves the job
// running.
func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerate(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, api.GenerateResponse{Error: err.Error()})
		return
	}
	svc := s.daemon.Jobs()
	handle, err := svc.Submit(r.Context(), req.Flags())
	if err != nil {
		if snap, ok := failedJob(svc, handle, err); ok {
			s.writeJSON(w, http.StatusOK, api.GenerateFromSnapshot(snap, false))
			return
		}
		status, resp := generateError(svc, handle, err)
		s.writeJSON(w, status, resp)
		return
	}

	res, err := svc.Await(r.Context(), handle, s.generateWait)
	if err != nil {
		// Client went away; the job keeps running.
		return
	}
	s.writeJSON(w, http.StatusOK, api.GenerateFromSnapshot(res.Snapshot, res.TimedOut))
}

// failedJob returns the snapshot of a job that Submit created and then failed
// before it could run. Such a job is a result, not a service error.
func failedJob(svc *jobs.Service, handle jobs.Handle, err error) (pipeline.Snapshot, bool) {
	if handle == "" || !errors.Is(err, services.ErrWorkspace) {
		return pipeline.Snapshot{}, false
	}
	snap, ok := svc.Lookup(string(handle))
	if !ok || snap.Status != pipeline.StatusFailed {
		return pipeline.Snapshot{}, false
	}
	return snap, true
}

func generateError(svc *jobs.Service, handle jobs.Handle, err error) (int, api.GenerateResponse) {
	resp := api.GenerateResponse{JobID: string(handle), Error: err.Error()}
	if snap, ok := svc.Lookup(string(handle)); ok {
		resp.Status = string(snap.Status)
	}
	switch {
	case errors.Is(err, jobs.ErrJobRunning):
		return http.StatusConflict, resp
	case errors.Is(err, services.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerate(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}
	svc := s.daemon.Jobs()
	handle, err := svc.Submit(r.Context(), req.Flags())
	if err != nil {
		if _, ok := failedJob(svc, handle, err); !ok {
			status, _ := generateError(svc, handle, err)
			s.writeError(w, status, err, string(handle))
			return
		}
	}
	snap, _ := svc.Lookup(string(handle))
	w.Header().Set("Location", "/api/jobs/"+string(handle))
	s.writeJSON(w, http.StatusAccepted, api.FromSnapshot(snap))
}

func (s *apiServer) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.daemon.Jobs().Current()
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("no job submitted"), "")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.daemon.Jobs().Lookup(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, jobs.ErrUnknownJob, id)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSnapshot(snap))
}

func (s *apiServer) handleWait(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	timeout := s.longPoll
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid timeout %q", raw), id)
			return
		}
		timeout = parsed
	}
	if timeout > maxWait {
		timeout = maxWait
	}

	res, err := s.daemon.Jobs().Await(r.Context(), jobs.Handle(id), timeout)
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		s.writeError(w, http.StatusNotFound, err, id)
		return
	case err != nil:
		return
	}
	s.writeJSON(w, http.StatusOK, api.WaitResponse{Job: api.FromSnapshot(res.Snapshot), TimedOut: res.TimedOut})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	err := s.daemon.Jobs().Clear(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, jobs.ErrJobRunning):
		s.writeError(w, http.StatusConflict, err, "")
	default:
		s.writeError(w, http.StatusInternalServerError, err, "")
	}
}

func decodeGenerate(r *http.Request) (api.GenerateRequest, error) {
	var req api.GenerateRequest
	if r.Body == nil {
		return req, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, err error, jobID string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: errorKind(err), JobID: jobID})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, jobs.ErrJobRunning):
		return "busy"
	case errors.Is(err, jobs.ErrUnknownJob):
		return "not_found"
	default:
		return services.Kind(err)
	}
}
