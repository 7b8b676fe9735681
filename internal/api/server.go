package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"schedule-tracker/internal/telemetry"
	"schedule-tracker/pkg/events"
	"schedule-tracker/pkg/manager"
	"schedule-tracker/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	store   manager.Manager
	bus     *events.Bus
	logger  *slog.Logger
	metrics *telemetry.Metrics
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a new Server. bus and metrics may be nil; without a bus the
// change stream is unavailable.
func New(store manager.Manager, bus *events.Bus, logger *slog.Logger, metrics *telemetry.Metrics) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:   store,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
		mux:     http.NewServeMux(),
	}
	s.routes()
	s.handler = otelhttp.NewHandler(s.middleware(s.mux), telemetry.ServiceName)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.HandleFunc("GET /tasks", s.handleTaskList)
	s.mux.HandleFunc("POST /tasks", s.handleTaskSave)
	s.mux.HandleFunc("DELETE /tasks", s.handleTaskDeleteAll)
	s.mux.HandleFunc("GET /tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("DELETE /tasks/{id}", s.handleTaskDelete)

	// Epics
	s.mux.HandleFunc("GET /epics", s.handleEpicList)
	s.mux.HandleFunc("POST /epics", s.handleEpicSave)
	s.mux.HandleFunc("DELETE /epics", s.handleEpicDeleteAll)
	s.mux.HandleFunc("GET /epics/{id}", s.handleEpicGet)
	s.mux.HandleFunc("DELETE /epics/{id}", s.handleEpicDelete)
	s.mux.HandleFunc("GET /epics/{id}/subtasks", s.handleEpicSubtasks)

	// Subtasks
	s.mux.HandleFunc("GET /subtasks", s.handleSubtaskList)
	s.mux.HandleFunc("POST /subtasks", s.handleSubtaskSave)
	s.mux.HandleFunc("DELETE /subtasks", s.handleSubtaskDeleteAll)
	s.mux.HandleFunc("GET /subtasks/{id}", s.handleSubtaskGet)
	s.mux.HandleFunc("DELETE /subtasks/{id}", s.handleSubtaskDelete)

	// Views
	s.mux.HandleFunc("GET /history", s.handleHistory)
	s.mux.HandleFunc("GET /prioritized", s.handlePrioritized)
	s.mux.HandleFunc("GET /events/stream", s.handleEventStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("write json", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps store errors onto response codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return 404
	case errors.Is(err, task.ErrTimeConflict):
		return 406
	case errors.Is(err, task.ErrInvalidArgument):
		return 400
	default:
		return 500
	}
}

// writeStoreError reports a failed store call and counts the rejection.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == 500 {
		s.logger.Error("store operation failed",
			"method", r.Method, "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
	}
	s.countRejection(r, status)
	writeError(w, status, err.Error())
}

// pathID parses the {id} wildcard. A value that is not a positive integer
// names no entity, so it writes a 404 and returns false.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.PathValue("id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, 404, "no entity with id "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	if s.bus != nil {
		subscribers = s.bus.Subscribers()
	}
	writeJSON(w, 200, map[string]any{
		"store":       s.store.Stats(r.Context()),
		"subscribers": subscribers,
	})
}
