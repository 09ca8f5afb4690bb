package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"filedrop/internal/logging"
)

const healthTimeout = 2 * time.Second

// handleHealth handles GET /healthz. A bare probe writes one health_checks
// row; a probe carrying a query or a body is rejected without touching the
// database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.RawQuery != "" || hasBody(r) {
		http.Error(w, "health probe takes no parameters", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.health.InsertHealthCheck(ctx); err != nil {
		s.metrics.RecordHealthCheck(false)
		logging.Error(r.Context(), "health check failed", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	s.metrics.RecordHealthCheck(true)
	w.WriteHeader(http.StatusOK)
}

// hasBody reports whether the request carries at least one body byte.
func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	var b [1]byte
	n, _ := io.ReadFull(r.Body, b[:])
	return n > 0
}
