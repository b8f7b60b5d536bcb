// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the Chi router. Public routes (submission checks
// and challenge refreshes) get the looser rate limit; settings
// mutations get the stricter administrative limit.
func NewRouter(h *Handler, mw *MiddlewareConfig) http.Handler {
	if mw == nil {
		mw = DefaultMiddlewareConfig()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(mw.CORS())

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw.PublicRateLimit())
			r.Post("/check", h.Check)
			r.Get("/challenge", h.Challenge)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.AdminRateLimit())
			r.Route("/settings/{integration}", func(r chi.Router) {
				r.Get("/", h.GetIntegrationOverrides)
				r.Put("/", h.PutIntegrationOverrides)
				r.Route("/{form}", func(r chi.Router) {
					r.Get("/", h.GetFormOverrides)
					r.Put("/", h.PutFormOverrides)
					r.Get("/sources", h.Sources)
				})
			})
			r.Get("/counters", h.Counters)
		})
	})

	return r
}
