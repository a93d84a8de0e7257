package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vulnwatch/api/internal/infra/http/handler"
)

// Handlers bundles the route handlers for registration.
type Handlers struct {
	Health  *handler.HealthHandler
	Scan    *handler.ScanHandler
	Finding *handler.FindingHandler
	Policy  *handler.PolicyHandler

	// UploadRateLimit optionally wraps the scan upload endpoint with a
	// Redis-backed distributed rate limit.
	UploadRateLimit func(http.Handler) http.Handler
}

// RegisterRoutes mounts all API routes on the router.
func RegisterRoutes(r chi.Router, h Handlers) {
	r.Get("/healthz", h.Health.Health)
	r.Get("/readyz", h.Health.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scans", func(r chi.Router) {
			if h.UploadRateLimit != nil {
				r.With(h.UploadRateLimit).Post("/", h.Scan.Upload)
			} else {
				r.Post("/", h.Scan.Upload)
			}

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Scan.Get)
				r.Delete("/", h.Scan.Delete)
				r.Get("/findings", h.Scan.ListFindings)
				r.Post("/policy-evaluation", h.Policy.Evaluate)
			})
		})

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/scans", h.Scan.ListByProject)
		})

		r.Route("/findings", func(r chi.Router) {
			r.Post("/transitions", h.Finding.BulkTransition)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Finding.Get)
				r.Get("/transitions", h.Finding.AvailableTransitions)
				r.Post("/transitions", h.Finding.Transition)
				r.Get("/history", h.Finding.History)
			})
		})

		r.Route("/policies", func(r chi.Router) {
			r.Post("/", h.Policy.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Policy.Get)
				r.Get("/rules", h.Policy.ListRules)
				r.Post("/rules", h.Policy.CreateRule)
			})
		})
	})
}
