// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package audit emits one structured log entry per blocked submission.
// The sink is fire-and-forget: it never returns an error or panics
// back into the pipeline, because a broken audit trail must not break
// spam evaluation.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/formwarden/formwarden/internal/logging"
)

// ZerologSink writes audit entries through the global logger.
type ZerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink creates a sink writing through the global logger with
// an audit component tag.
func NewZerologSink() *ZerologSink {
	return &ZerologSink{
		logger: logging.With().Str("component", "audit").Logger(),
	}
}

// NewZerologSinkWith creates a sink over an explicit logger, used by
// tests to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewZerologSinkWith(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// Log records one verdict. category is the name of the validator that
// produced the user-facing reason.
func (s *ZerologSink) Log(category string, fields map[string]string, spam bool, message string) {
	defer func() {
		// A sink failure must never reach the pipeline.
		_ = recover()
	}()

	event := s.logger.Info().
		Str("category", category).
		Bool("spam", spam).
		Str("reason", message)
	for k, v := range fields {
		event = event.Str(k, v)
	}
	event.Msg("submission blocked")
}
