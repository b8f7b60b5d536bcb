// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package api exposes the pipeline over HTTP: submission checks,
// challenge issuance, settings management and counters. Routing uses
// Chi with production-hardened middleware from its ecosystem.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/formwarden/formwarden/internal/logging"
)

type contextKey string

// RequestIDKey carries the request correlation ID in the context.
const RequestIDKey contextKey = "request_id"

// RequestID generates a unique ID for each request and adds it to the
// response header and request context for correlated logging. An
// upstream proxy's X-Request-ID is honored when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// MiddlewareConfig holds rate limiting and CORS configuration for the
// router. Admin limits cover settings mutations; public limits cover
// submission checks and challenge refreshes.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string

	AdminRateLimitReqs   int
	AdminRateLimitWindow time.Duration

	PublicRateLimitReqs   int
	PublicRateLimitWindow time.Duration

	RateLimitDisabled bool
}

// DefaultMiddlewareConfig returns a secure default configuration. CORS
// origins default to empty, requiring explicit configuration.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins:    []string{},
		AdminRateLimitReqs:    20,
		AdminRateLimitWindow:  time.Minute,
		PublicRateLimitReqs:   300,
		PublicRateLimitWindow: time.Minute,
		RateLimitDisabled:     false,
	}
}

// CORS returns the CORS middleware for the configured origins.
func (c *MiddlewareConfig) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   c.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// AdminRateLimit returns the fixed-window per-IP limiter for
// administrative routes.
func (c *MiddlewareConfig) AdminRateLimit() func(http.Handler) http.Handler {
	return c.limit(c.AdminRateLimitReqs, c.AdminRateLimitWindow)
}

// PublicRateLimit returns the looser limiter for public routes.
func (c *MiddlewareConfig) PublicRateLimit() func(http.Handler) http.Handler {
	return c.limit(c.PublicRateLimitReqs, c.PublicRateLimitWindow)
}

func (c *MiddlewareConfig) limit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if c.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
	)
}
