/*
server.go - HTTP router and middleware configuration

ROUTER: chi

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*         Users, balances, lots, ledger
  /api/policies/*      Price policies and membership purchase
  /api/lessons/*       Lessons and reservation
  /api/reservations/*  Cancellation
  /api/scenarios/*     Demo data loaders (DEMO_SCENARIOS=true only)
  /metrics             Prometheus (when enabled)
  /healthz             Liveness

ACTING USER:
  Purchase, reserve and cancel act on behalf of the user named in the
  X-User-ID header. Requests without it get 401. The header is trusted as
  is; authentication happens in front of this service.

SEE ALSO:
  - handlers.go: Handler implementations
  - scenarios.go: Demo data loaders
  - scheduler.go: Background expiry sweep
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/gym-credit/config"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowOrigins,
		AllowedMethods: cfg.CORS.AllowMethods,
		AllowedHeaders: cfg.CORS.AllowHeaders,
		MaxAge:         int(cfg.CORS.MaxAge.Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", h.ListPolicies)
			r.Post("/", h.CreatePolicy)
			r.Get("/{id}", h.GetPolicy)
			r.With(RequireUser).Post("/{id}/purchase", h.BuyCredit)
		})

		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", h.ListLessons)
			r.Post("/", h.CreateLesson)
			r.Get("/{id}", h.GetLesson)
			r.With(RequireUser).Post("/{id}/reserve", h.Reserve)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.With(RequireUser).Post("/{id}/cancel", h.Cancel)
		})

		if cfg.Demo.Enabled {
			r.Get("/scenarios", h.ListScenarios)
			r.Post("/scenarios/load", h.LoadScenario)
		}
	})

	return r
}
