// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// ValidatorIPBlacklist names the IP blacklist validator.
const ValidatorIPBlacklist = "ip_blacklist"

const ipBlacklistMessage = "Your IP address is not allowed to submit this form."

// IPBlacklist blocks submissions from operator-configured addresses.
// Matching is exact string comparison against a newline-delimited
// list; entries are not interpreted as CIDR ranges.
type IPBlacklist struct{}

// NewIPBlacklist creates the IP blacklist validator.
func NewIPBlacklist() *IPBlacklist {
	return &IPBlacklist{}
}

// Name implements Validator.
func (v *IPBlacklist) Name() string { return ValidatorIPBlacklist }

// Enabled implements Validator.
func (v *IPBlacklist) Enabled(eff settings.Effective) bool {
	return eff.Bool(settings.KeyIPBlacklistEnabled)
}

// Check implements Validator.
func (v *IPBlacklist) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	ip := sc.RemoteIP()
	if ip == "" {
		return clean(ValidatorIPBlacklist)
	}
	if listContains(eff.Str(settings.KeyIPBlacklist), ip) {
		return spam(ValidatorIPBlacklist, ipBlacklistMessage)
	}
	return clean(ValidatorIPBlacklist)
}

// Challenge implements Validator.
func (v *IPBlacklist) Challenge(*request.SubmissionContext) string { return "" }

// OnSuccess implements Validator.
func (v *IPBlacklist) OnSuccess(context.Context, *request.SubmissionContext) {}
