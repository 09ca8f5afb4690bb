package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"filedrop/internal/files"
)

// BuildInfo is reported on /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

// HealthStore records health probes.
type HealthStore interface {
	InsertHealthCheck(ctx context.Context) error
}

type Config struct {
	Addr    string // e.g. ":8080"
	Build   BuildInfo
	Files   *files.Service
	Health  HealthStore
	Metrics *Metrics // optional; a fresh set is created when nil
}

type Server struct {
	httpServer *http.Server
	files      *files.Service
	health     HealthStore
	metrics    *Metrics
	build      BuildInfo
}

func New(cfg Config) *Server {
	s := &Server{
		files:   cfg.Files,
		health:  cfg.Health,
		metrics: cfg.Metrics,
		build:   cfg.Build,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/file", s.handleUpload)
	mux.HandleFunc("GET /v1/file", s.handleMissingID)
	mux.HandleFunc("DELETE /v1/file", s.handleMissingID)
	mux.HandleFunc("HEAD /v1/file", methodNotAllowed("GET, DELETE, POST"))

	mux.HandleFunc("GET /v1/file/{id}", s.handleGet)
	mux.HandleFunc("DELETE /v1/file/{id}", s.handleDelete)
	mux.HandleFunc("HEAD /v1/file/{id}", methodNotAllowed("GET, DELETE"))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("HEAD /healthz", methodNotAllowed("GET"))

	mux.Handle("GET /metrics", s.metrics.PrometheusHandler(s.build))

	// Wrap middleware: requestID -> noCache -> logging -> mux
	var handler http.Handler = mux
	handler = s.loggingMiddleware(handler)
	handler = noCacheMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// GET patterns also match HEAD; these routes do not serve HEAD.
func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
