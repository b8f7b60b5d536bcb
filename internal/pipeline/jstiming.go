// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"strconv"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// ValidatorJSTiming names the JavaScript timing validator.
const ValidatorJSTiming = "js_timing"

const jsTimingMessage = "Please enable JavaScript and try submitting again."

// JSTiming proves the submission came from a browser that executed
// JavaScript: the client-side snippet writes a token field and the
// elapsed milliseconds between page load and submit. Headless and
// non-JS clients cannot produce either, so missing fields or a zero
// elapsed time are treated as spam.
type JSTiming struct{}

// NewJSTiming creates the JavaScript timing validator.
func NewJSTiming() *JSTiming {
	return &JSTiming{}
}

// Name implements Validator.
func (v *JSTiming) Name() string { return ValidatorJSTiming }

// Enabled implements Validator.
func (v *JSTiming) Enabled(eff settings.Effective) bool {
	return eff.Bool(settings.KeyJSTimingEnabled)
}

// Check implements Validator.
func (v *JSTiming) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	fields := sc.Fields()

	if !fields.Has(FieldJSToken) || fields.First(FieldJSToken) == "" {
		return spam(ValidatorJSTiming, jsTimingMessage)
	}

	elapsedRaw := fields.First(FieldElapsedMS)
	if elapsedRaw == "" {
		return spam(ValidatorJSTiming, jsTimingMessage)
	}

	elapsed, err := strconv.ParseInt(elapsedRaw, 10, 64)
	if err != nil || elapsed <= 0 {
		return spam(ValidatorJSTiming, jsTimingMessage)
	}

	return clean(ValidatorJSTiming)
}

// Challenge implements Validator. The returned snippet is embedded
// when the form renders; it records the load timestamp and fills the
// hidden fields on submit.
func (v *JSTiming) Challenge(*request.SubmissionContext) string {
	return `<script>(function(){var t=Date.now();document.addEventListener("submit",function(e){var f=e.target;if(!f.elements)return;var tok=f.elements["` + FieldJSToken + `"],el=f.elements["` + FieldElapsedMS + `"];if(tok)tok.value="1";if(el)el.value=String(Date.now()-t);},true);})();</script>` +
		`<input type="hidden" name="` + FieldJSToken + `" value=""><input type="hidden" name="` + FieldElapsedMS + `" value="">`
}

// OnSuccess implements Validator.
func (v *JSTiming) OnSuccess(context.Context, *request.SubmissionContext) {}
