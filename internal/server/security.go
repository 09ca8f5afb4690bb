package server

import "net/http"

// noCacheMiddleware marks every response, errors included, as uncacheable.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")

		// Prevent MIME sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		next.ServeHTTP(w, r)
	})
}
