// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package api

import (
	"github.com/goccy/go-json"
)

// CheckRequest is the submission evaluation payload. The integration
// layer forwards the raw form payload plus the request metadata it
// extracted; the payload shape is decoded by the integration's parser.
type CheckRequest struct {
	IntegrationID string            `json:"integration_id" validate:"omitempty,max=64"`
	FormID        string            `json:"form_id" validate:"omitempty,max=64"`
	RemoteIP      string            `json:"remote_ip" validate:"required,ip"`
	UserAgent     string            `json:"user_agent" validate:"max=1024"`
	Route         string            `json:"route" validate:"omitempty,max=512"`
	Headers       map[string]string `json:"headers,omitempty"`
	Authenticated bool              `json:"authenticated"`
	Roles         []string          `json:"roles,omitempty" validate:"max=32,dive,max=64"`
	Payload       json.RawMessage   `json:"payload" validate:"required"`
}

// CheckResponse is the aggregated verdict returned to the caller.
type CheckResponse struct {
	Spam      bool   `json:"spam"`
	Message   string `json:"message,omitempty"`
	Validator string `json:"validator,omitempty"`
}

// ChallengeResponse carries render-time challenges keyed by validator
// name: anti-replay token hashes and the JS timing snippet.
type ChallengeResponse struct {
	Challenges map[string]string `json:"challenges"`
}

// OverridesRequest is the body for saving integration- or form-level
// setting overrides.
type OverridesRequest struct {
	Enabled bool           `json:"enabled"`
	Values  map[string]any `json:"values"`
}

// OverridesResponse mirrors a stored override record.
type OverridesResponse struct {
	Enabled bool           `json:"enabled"`
	Values  map[string]any `json:"values"`
}

// SourcesResponse reports which layer produced each effective value.
type SourcesResponse struct {
	Sources map[string]string `json:"sources"`
}

// CountersResponse returns the durable telemetry counters.
type CountersResponse struct {
	Counters map[string]int64 `json:"counters"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
