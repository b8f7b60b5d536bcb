// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package pipeline contains the protection orchestrator and the set of
// independently-enabled spam validators it runs. Each validator is a
// self-contained check over a SubmissionContext; the orchestrator
// aggregates their verdicts, counts every hit, and reports only the
// first blocking reason to the submitter.
package pipeline

import (
	"context"
	"errors"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// Hidden field names the client-side integration embeds in forms.
const (
	FieldTimerToken    = "fw_timer_token"
	FieldSubmitToken   = "fw_submit_token"
	FieldJSToken       = "fw_js_token"
	FieldElapsedMS     = "fw_elapsed_ms"
	FieldBehaviorToken = "fw_behavior_token"
)

// ErrNilContext indicates the caller passed a nil submission context.
// This is integration misuse, not a runtime condition to recover from.
var ErrNilContext = errors.New("pipeline: nil submission context")

// Verdict is one validator's judgment of a submission. Never persisted;
// consumed synchronously by the orchestrator.
type Verdict struct {
	Validator string `json:"validator"`
	Spam      bool   `json:"spam"`
	Message   string `json:"message,omitempty"`
}

// Result is the aggregated pipeline outcome. Message carries only the
// first blocking reason; showing the full list would tell an attacker
// exactly which defenses they failed.
type Result struct {
	Spam      bool   `json:"spam"`
	Message   string `json:"message,omitempty"`
	Validator string `json:"validator,omitempty"`
}

// Validator is one pluggable spam check.
type Validator interface {
	// Name identifies the validator in counters, logs and verdicts.
	Name() string

	// Enabled reports whether this check runs under the resolved
	// settings for the current submission.
	Enabled(eff settings.Effective) bool

	// Check evaluates the submission and returns a verdict.
	Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict

	// Challenge returns opaque markup or data the integration embeds
	// when rendering the form, or "" when the validator needs none.
	Challenge(sc *request.SubmissionContext) string

	// OnSuccess runs after a fully clean evaluation, for cleanup such
	// as consuming a spent timer token.
	OnSuccess(ctx context.Context, sc *request.SubmissionContext)
}

// Observer hooks into defined pipeline stages. Observers run in
// registration order and must not block.
type Observer interface {
	BeforeEvaluate(ctx context.Context, sc *request.SubmissionContext)
	AfterValidator(ctx context.Context, sc *request.SubmissionContext, v Verdict)
	AfterEvaluate(ctx context.Context, sc *request.SubmissionContext, r Result)
}

// AuditSink receives one entry per blocked submission, tagged with the
// category of the validator that produced the user-facing reason.
// Implementations are fire-and-forget and must never panic back into
// the pipeline.
type AuditSink interface {
	Log(category string, fields map[string]string, spam bool, message string)
}

// NopAuditSink discards all entries.
type NopAuditSink struct{}

// Log implements AuditSink.
func (NopAuditSink) Log(string, map[string]string, bool, string) {}

// clean is shorthand for a non-spam verdict.
func clean(name string) Verdict {
	return Verdict{Validator: name}
}

// spam builds a blocking verdict.
func spam(name, message string) Verdict {
	return Verdict{Validator: name, Spam: true, Message: message}
}
