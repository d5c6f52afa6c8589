package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"taskq/internal/api"
	"taskq/internal/config"
	"taskq/internal/logging"
	"taskq/internal/queue"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// newAPIServer returns nil when no bind address is configured; the nil
// server's methods are no-ops.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	return &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))

		r.Get("/status", s.handleStatus)
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleEnqueue)
		r.Get("/tasks/{id}", s.handleDescribeTask)
		r.Delete("/tasks/{id}", s.handleDeleteTask)
		r.Post("/tasks/{id}/retry", s.handleRetryTask)
		r.Get("/categories/{category}/active", s.handleCategoryActive)
		r.Get("/events", s.handleListEvents)
		r.Delete("/events/{id}", s.handleDeleteEvent)
		r.Post("/maintenance/cleanup", s.handleCleanup)
		r.Get("/changes", s.handleChanges)
	})
	return r
}

func (s *apiServer) start(_ context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
				logging.String(logging.FieldErrorHint, "check api_bind and restart the daemon"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server, done := s.server, s.done
	s.server, s.listener, s.done = nil, nil, nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	close(done)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) shutdownSignal() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := api.TaskQuery{Lane: strings.TrimSpace(query.Get("lane"))}
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				q.Statuses = append(q.Statuses, trimmed)
			}
		}
	}
	if value := strings.TrimSpace(query.Get("category")); value != "" {
		category, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}
		q.Category = &category
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	tasks, err := s.daemon.Service().List(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	task, err := s.daemon.Service().Enqueue(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TaskResponse{Task: *task})
}

func (s *apiServer) handleDescribeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := s.daemon.Service().Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: *task})
}

func (s *apiServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.daemon.Service().DeleteTasks(r.Context(), []int64{id})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	item := result.Items[0]
	switch item.Outcome {
	case api.DeleteTaskNotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
	case api.DeleteTaskDeferred:
		s.writeJSON(w, http.StatusAccepted, item)
	default:
		s.writeJSON(w, http.StatusOK, item)
	}
}

func (s *apiServer) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := s.daemon.Service().RetryTasks(r.Context(), []int64{id})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	item := result.Items[0]
	switch item.Outcome {
	case api.RetryTaskNotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %d not found", id))
	case api.RetryTaskNotFailed:
		writeError(w, http.StatusConflict, fmt.Sprintf("task %d is %s, not failed", id, item.PriorStatus))
	default:
		s.writeJSON(w, http.StatusOK, item)
	}
}

func (s *apiServer) handleCategoryActive(w http.ResponseWriter, r *http.Request) {
	category, ok := pathID(w, r, "category")
	if !ok {
		return
	}
	active, err := s.daemon.Service().HasActiveTasks(r.Context(), category)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"category": category, "active": active})
}

func (s *apiServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	var taskID *int64
	if value := strings.TrimSpace(r.URL.Query().Get("task")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid task id")
			return
		}
		taskID = &id
	}
	events, err := s.daemon.Service().Events(r.Context(), taskID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventListResponse{Events: events})
}

func (s *apiServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.daemon.Service().DeleteEvent(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Service().Cleanup(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, api.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, api.ErrNotFound), errors.Is(err, queue.ErrTaskNotFound), errors.Is(err, queue.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logging.WarnWithContext(s.logger, "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
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

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
