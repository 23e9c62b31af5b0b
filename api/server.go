/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/additions/*      Rule catalog and versions
  /api/revisions/*      Law revisions
  /api/facilities/*     Facility masters and preset settings
  /api/calculate        What-if revenue projection
  /api/usage            Usage-record ingestion
  /api/billing/*        Generate / confirm / export
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Catalog routes
		r.Route("/additions", func(r chi.Router) {
			r.Get("/", h.ListAdditions)
			r.Post("/", h.SaveAddition)
			r.Get("/{code}", h.GetAddition)
			r.Delete("/{code}", h.DeleteAddition)
			r.Get("/{code}/versions", h.ListVersions)
		})
		r.Post("/versions", h.SaveVersion)

		// Law revision routes
		r.Route("/revisions", func(r chi.Router) {
			r.Get("/", h.ListRevisions)
			r.Post("/", h.SaveRevision)
		})

		// Facility routes
		r.Route("/facilities", func(r chi.Router) {
			r.Post("/", h.SaveFacility)
			r.Get("/{id}/settings", h.ListFacilitySettings)
			r.Post("/{id}/settings", h.SaveFacilitySetting)
		})

		// Master routes
		r.Post("/children", h.SaveChild)
		r.Route("/service-codes", func(r chi.Router) {
			r.Get("/", h.ListServiceCodes)
			r.Post("/", h.SaveServiceCode)
		})

		// Calculation route
		r.Post("/calculate", h.Calculate)

		// Usage ingestion
		r.Post("/usage", h.IngestUsage)

		// Billing routes
		r.Route("/billing", func(r chi.Router) {
			r.Post("/generate", h.GenerateBilling)
			r.Post("/confirm", h.ConfirmBilling)
			r.Get("/export", h.ExportBilling)
			r.Route("/records", func(r chi.Router) {
				r.Get("/", h.ListBillingRecords)
				r.Get("/{id}", h.GetBillingRecord)
				r.Get("/{id}/details", h.GetBillingDetails)
				r.Put("/{id}/notes", h.UpdateBillingNotes)
			})
		})

		// Dev reset
		r.Post("/reset", h.ResetDatabase)
	})

	return r
}
