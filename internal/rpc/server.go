package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bmir-radx/harmonization-framework/internal/jobs"
)

// maxBodyBytes bounds an RPC request body.
const maxBodyBytes = 1 << 20

// StatusResponse is the body of the health and shutdown endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Server serves the RPC endpoint and its companions:
//
//	POST /api       RPC envelope
//	GET  /health    liveness
//	POST /shutdown  request a graceful stop
//	GET  /metrics   Prometheus exposition (when a gatherer is set)
type Server struct {
	dispatcher *Dispatcher
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	shutdown   func()
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithGatherer exposes metrics from g at /metrics.
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithServerLogger sets the request logger. Default: slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithShutdown sets the function POST /shutdown calls after responding.
func WithShutdown(fn func()) ServerOption {
	return func(s *Server) {
		s.shutdown = fn
	}
}

// NewServer creates a Server for d.
func NewServer(d *Dispatcher, opts ...ServerOption) *Server {
	s := &Server{dispatcher: d, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/api", s.handleRPC)
	r.Get("/health", s.handleHealth)
	r.Post("/shutdown", s.handleShutdown)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Failure(jobs.Errorf(jobs.CodeValidation, "invalid request body: %v", err)))
		return
	}
	if req.Method == "" {
		writeJSON(w, http.StatusBadRequest, Failure(jobs.NewError(jobs.CodeValidation, "method is required",
			map[string]any{"field": "method"})))
		return
	}
	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(req))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "The harmonization API is available"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "Shutdown initiated"})
	if s.shutdown != nil {
		s.logger.Info("shutdown requested")
		go s.shutdown()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
