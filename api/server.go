/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/curriculum       Curriculum table
  /api/users/{id}/*     Per-user ledger, schedule and writes
  /api/admin/*          Cross-user aggregates
  /api/scenarios/*      Demo scenarios
  /health               Liveness
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. The {id} segment is trusted as given; put
  the server behind something that authenticates users.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAllowedOrigins is used when NewRouter gets no origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/curriculum", h.GetCurriculum)

		// User routes
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/ledger", h.GetLedger)
			r.Get("/stats", h.GetStats)
			r.Get("/today", h.GetToday)
			r.Get("/weekly", h.GetWeekly)
			r.Get("/plan", h.GetPlan)
			r.Put("/plan", h.SavePlan)
			r.Put("/chapters/{book}/{chapter}", h.ToggleChapter)
			r.Post("/books/{book}/mark", h.MarkBook)
			r.Post("/advance-sync", h.AdvanceSync)
			r.Delete("/session", h.EndSession)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Get("/distribution", h.GetDistribution)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
