package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/socialgraph-parser/internal/config"
	"github.com/JakeFAU/socialgraph-parser/internal/metrics"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/queue/memory"
	"github.com/JakeFAU/socialgraph-parser/internal/supervisor"
)

const (
	maxPageBytes   = 8 << 20
	requestTimeout = 60 * time.Second
)

// Enqueuer accepts page tasks, blocking while the queue is full.
type Enqueuer interface {
	Put(ctx context.Context, task parser.PageTask) error
}

// WorkerSupervisor is the supervision surface exposed over HTTP.
type WorkerSupervisor interface {
	Snapshot() []supervisor.WorkerInfo
	Restart(ctx context.Context, kind parser.Kind) error
}

// Server wires HTTP handlers to the page queues and the supervisor.
type Server struct {
	router     chi.Router
	queues     map[parser.Kind]Enqueuer
	supervisor WorkerSupervisor
	idGen      parser.IDGenerator
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queues map[parser.Kind]Enqueuer,
	sup WorkerSupervisor,
	idGen parser.IDGenerator,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		queues:     queues,
		supervisor: sup,
		idGen:      idGen,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/pages/{kind}", s.submitPage)
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", s.listWorkers)
			r.Post("/{kind}/restart", s.restartWorker)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports not ready while any worker is not running.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	for _, info := range s.supervisor.Snapshot() {
		if info.Status != parser.StatusRunning {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"kind":   string(info.Kind),
				"worker": string(info.Status),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type pageRequest struct {
	HTML       *string `json:"html"`
	Token      *string `json:"token"`
	ThreadName string  `json:"thread_name"`
}

func (s *Server) submitPage(w http.ResponseWriter, r *http.Request) {
	kind := parser.Kind(chi.URLParam(r, "kind"))
	q, ok := s.queues[kind]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown page kind %q", kind))
		return
	}

	var req pageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	taskID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate task id")
		return
	}
	task := parser.PageTask{ID: taskID, HTML: req.HTML, Token: req.Token, ThreadName: req.ThreadName}

	// Put blocks while the queue is full; the request context bounds the wait.
	if err := q.Put(r.Context(), task); err != nil {
		s.logger.Warn("page not enqueued",
			zap.String("kind", string(kind)), zap.String("task_id", taskID), zap.Error(err))
		msg := "queue full"
		if errors.Is(err, memory.ErrClosed) {
			msg = "shutting down"
		}
		writeError(w, http.StatusServiceUnavailable, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workers": s.supervisor.Snapshot()})
}

func (s *Server) restartWorker(w http.ResponseWriter, r *http.Request) {
	kind := parser.Kind(chi.URLParam(r, "kind"))
	// The new worker must outlive this request; it stops with its queue.
	err := s.supervisor.Restart(context.WithoutCancel(r.Context()), kind)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"kind": string(kind), "status": "restarted"})
	case errors.Is(err, supervisor.ErrRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, supervisor.ErrUnknownKind):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID assigned by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.String("request_id", RequestID(r.Context())),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
