// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"strings"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// ValidatorWhitelist names the whitelist short-circuit.
const ValidatorWhitelist = "whitelist"

// checkoutActions are AJAX action names belonging to payment and
// checkout flows. Blocking these on heuristics breaks purchases, and
// they carry their own fraud controls downstream.
var checkoutActions = map[string]struct{}{
	"checkout":                {},
	"wc_checkout":             {},
	"wc_stripe_create_order":  {},
	"wc_stripe_verify_intent": {},
	"add_payment_method":      {},
	"apply_coupon":            {},
}

// storefrontRoutePrefixes are REST API prefixes for storefront traffic
// that the pipeline never evaluates.
var storefrontRoutePrefixes = []string{
	"/wc/store/",
	"/wc/v3/",
}

// Whitelist short-circuits the whole pipeline when the submission is
// trusted: checkout traffic, storefront API routes, privileged or
// whitelisted submitters. It is always evaluated first and its match
// skips every other validator.
type Whitelist struct{}

// NewWhitelist creates the whitelist validator.
func NewWhitelist() *Whitelist {
	return &Whitelist{}
}

// Name implements Validator.
func (w *Whitelist) Name() string { return ValidatorWhitelist }

// Enabled implements Validator. The whitelist cannot be turned off:
// its criteria are strict enough that skipping them is never unsafe,
// and evaluating checkout traffic would be worse than any spam risk.
func (w *Whitelist) Enabled(settings.Effective) bool { return true }

// Matches reports whether the submission should bypass all checks.
func (w *Whitelist) Matches(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) bool {
	if action := sc.Fields().First("action"); action != "" {
		if _, ok := checkoutActions[action]; ok {
			return true
		}
	}

	for _, prefix := range storefrontRoutePrefixes {
		if strings.HasPrefix(sc.Route(), prefix) {
			return true
		}
	}

	if sc.Authenticated() {
		if eff.Bool(settings.KeyWhitelistLoggedIn) {
			return true
		}
		if eff.Bool(settings.KeyWhitelistAdmins) && sc.HasRole("admin") {
			return true
		}
	}

	if ip := sc.RemoteIP(); ip != "" && listContains(eff.Str(settings.KeyIPWhitelist), ip) {
		return true
	}

	if emails := eff.StrList(settings.KeyEmailWhitelist); len(emails) > 0 {
		if anyFieldMatches(sc.Fields(), emails) {
			return true
		}
	}

	return false
}

// Check implements Validator. The whitelist never reports spam; its
// effect is the Matches short-circuit in the orchestrator.
func (w *Whitelist) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	return clean(ValidatorWhitelist)
}

// Challenge implements Validator.
func (w *Whitelist) Challenge(*request.SubmissionContext) string { return "" }

// OnSuccess implements Validator.
func (w *Whitelist) OnSuccess(context.Context, *request.SubmissionContext) {}

// listContains checks a newline-delimited list for an exact entry.
func listContains(list, needle string) bool {
	for _, line := range strings.Split(list, "\n") {
		if strings.TrimSpace(line) == needle {
			return true
		}
	}
	return false
}

// anyFieldMatches reports whether any submitted value equals one of the
// whitelisted entries, case-insensitively.
func anyFieldMatches(fields *request.FieldMap, entries []string) bool {
	for _, name := range fields.Names() {
		for _, value := range fields.Values(name) {
			v := strings.TrimSpace(value)
			for _, entry := range entries {
				if strings.EqualFold(v, entry) {
					return true
				}
			}
		}
	}
	return false
}
