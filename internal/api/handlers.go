// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package api

import (
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/pipeline"
	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
	"github.com/formwarden/formwarden/internal/telemetry"
	"github.com/formwarden/formwarden/internal/validation"
)

// maxBodyBytes bounds request bodies; form submissions beyond this are
// rejected before parsing.
const maxBodyBytes = 1 << 20

// Handler serves the FormWarden HTTP API.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	resolver     *settings.Resolver
	counters     telemetry.CounterStore
	parsers      *request.Registry
}

// NewHandler creates the API handler.
func NewHandler(orch *pipeline.Orchestrator, resolver *settings.Resolver, counters telemetry.CounterStore, parsers *request.Registry) *Handler {
	return &Handler{
		orchestrator: orch,
		resolver:     resolver,
		counters:     counters,
		parsers:      parsers,
	}
}

// Check evaluates one submission.
//
//	POST /api/v1/check
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !h.decode(w, r, &req) {
		return
	}

	fields, err := h.parsers.Parse(req.IntegrationID, req.Payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sc := request.NewContext(request.Meta{
		RemoteIP:      req.RemoteIP,
		UserAgent:     req.UserAgent,
		Route:         req.Route,
		Headers:       req.Headers,
		Authenticated: req.Authenticated,
		Roles:         req.Roles,
		IntegrationID: req.IntegrationID,
		FormID:        req.FormID,
	}, fields)

	// One buffer per request, flushed exactly once after evaluation.
	buf := telemetry.NewBuffer(h.counters)
	defer buf.Flush(r.Context())

	result, err := h.orchestrator.Evaluate(r.Context(), sc, buf)
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("evaluation failed")
		respondError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	respondJSON(w, http.StatusOK, CheckResponse{
		Spam:      result.Spam,
		Message:   result.Message,
		Validator: result.Validator,
	})
}

// Challenge issues render-time challenges for a form.
//
//	GET /api/v1/challenge?integration_id=...&form_id=...
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	sc := request.NewContext(request.Meta{
		RemoteIP:      clientIP(r),
		UserAgent:     r.UserAgent(),
		IntegrationID: r.URL.Query().Get("integration_id"),
		FormID:        r.URL.Query().Get("form_id"),
	}, nil)

	challenges := h.orchestrator.Challenges(r.Context(), sc)
	respondJSON(w, http.StatusOK, ChallengeResponse{Challenges: challenges})
}

// GetIntegrationOverrides returns the stored layer-2 record.
//
//	GET /api/v1/settings/{integration}
func (h *Handler) GetIntegrationOverrides(w http.ResponseWriter, r *http.Request) {
	rec, err := h.resolver.GetIntegrationOverrides(r.Context(), chi.URLParam(r, "integration"))
	h.respondOverrides(w, r, rec, err)
}

// PutIntegrationOverrides saves layer-2 overrides.
//
//	PUT /api/v1/settings/{integration}
func (h *Handler) PutIntegrationOverrides(w http.ResponseWriter, r *http.Request) {
	var req OverridesRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.resolver.SaveIntegrationOverrides(r.Context(), chi.URLParam(r, "integration"), req.Enabled, req.Values)
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("save integration overrides failed")
		respondError(w, http.StatusInternalServerError, "failed to save overrides")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFormOverrides returns the stored layer-3 record.
//
//	GET /api/v1/settings/{integration}/{form}
func (h *Handler) GetFormOverrides(w http.ResponseWriter, r *http.Request) {
	rec, err := h.resolver.GetFormOverrides(r.Context(), chi.URLParam(r, "integration"), chi.URLParam(r, "form"))
	h.respondOverrides(w, r, rec, err)
}

// PutFormOverrides saves layer-3 overrides.
//
//	PUT /api/v1/settings/{integration}/{form}
func (h *Handler) PutFormOverrides(w http.ResponseWriter, r *http.Request) {
	var req OverridesRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.resolver.SaveFormOverrides(r.Context(), chi.URLParam(r, "integration"), chi.URLParam(r, "form"), req.Enabled, req.Values)
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("save form overrides failed")
		respondError(w, http.StatusInternalServerError, "failed to save overrides")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sources reports the layer in effect per key for a form.
//
//	GET /api/v1/settings/{integration}/{form}/sources
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	sources := h.resolver.Sources(r.Context(), chi.URLParam(r, "integration"), chi.URLParam(r, "form"))

	out := make(map[string]string, len(sources))
	for key, layer := range sources {
		out[key] = string(layer)
	}
	respondJSON(w, http.StatusOK, SourcesResponse{Sources: out})
}

// Counters returns the durable telemetry counters.
//
//	GET /api/v1/counters
func (h *Handler) Counters(w http.ResponseWriter, r *http.Request) {
	counters, err := h.counters.All(r.Context())
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("counter read failed")
		respondError(w, http.StatusInternalServerError, "failed to read counters")
		return
	}
	respondJSON(w, http.StatusOK, CountersResponse{Counters: counters})
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondOverrides(w http.ResponseWriter, r *http.Request, rec *settings.OverrideRecord, err error) {
	if errors.Is(err, settings.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no overrides configured")
		return
	}
	if err != nil {
		log := logging.Ctx(r.Context())
		log.Error().Err(err).Msg("override read failed")
		respondError(w, http.StatusInternalServerError, "failed to read overrides")
		return
	}
	respondJSON(w, http.StatusOK, OverridesResponse{Enabled: rec.Enabled, Values: rec.Values})
}

// decode reads, unmarshals and validates a JSON body, writing the
// error response itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("response encoding failed")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// clientIP extracts the direct peer address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
