package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the v1 API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/work-items", h.CreateWorkItem)
		r.Route("/work-items/{workItemID}", func(r chi.Router) {
			r.Get("/", h.GetWorkItem)
			r.Post("/flags", h.SetFlags)
			r.Post("/decisions", h.SubmitDecision)
			r.Get("/decisions", h.ListDecisions)
			r.Post("/advance", h.Advance)
			r.Post("/gates/{gateID}", h.EvaluateGate)
			r.Post("/checklist", h.ValidateChecklist)
			r.Post("/readiness", h.Readiness)
			r.Post("/audit", h.AppendAudit)
			r.Get("/audit", h.QueryAudit)
			r.Post("/versions", h.CreateVersion)
			r.Get("/versions/{version}", h.GetVersion)
			r.Get("/versions/{version}/verify", h.VerifyVersion)
			r.Get("/versions/{version}/diff/{to}", h.DiffVersions)
		})
		r.Post("/roles/{roleID}/context", h.ValidateContext)
	})

	return r
}
