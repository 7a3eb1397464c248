package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/couchcryptid/order-geo-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Geocoder resolves free-text addresses.
type Geocoder interface {
	Geocode(ctx context.Context, address, city string) (domain.GeocodeResult, bool)
}

// Estimator computes order ETAs.
type Estimator interface {
	EstimateOrder(ctx context.Context, o domain.Order) domain.DeliveryEstimate
}

// Deps are the collaborators behind the API routes.
type Deps struct {
	Geocoder  Geocoder
	Estimator Estimator
	Usage     domain.UsageReader
	Ready     sharedobs.ReadinessChecker
	Metrics   *observability.Metrics

	// Providers lists the usage counters reported by /v1/usage.
	Providers []string

	// Location defines "today" for /v1/usage.
	Location *time.Location
	Clock    clockwork.Clock
}

// Server exposes the geocoding and ETA API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /v1 API and /healthz, /readyz, /metrics routes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second, // a full cascade can take several provider timeouts
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: logger,
	}

	r.Use(requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(deps.Ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/geocode", s.handleGeocode)
		r.Post("/estimate", s.handleEstimate)
		r.Get("/usage", s.handleUsage)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker sharedobs.ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
