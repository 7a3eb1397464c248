package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// requestIDMiddleware propagates X-Request-ID or generates a UUID for it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
			r.Header.Set(headerRequestID, rid)
		}
		w.Header().Set(headerRequestID, rid)
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one structured line per API request. Probe and scrape
// routes are logged at debug.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log := s.logger.Info
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			log = s.logger.Debug
		}
		log("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", r.Header.Get(headerRequestID),
		)
	})
}
