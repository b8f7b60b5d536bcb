// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// ValidatorBotSignature names the browser/bot signature validator.
const ValidatorBotSignature = "bot_signature"

const botSignatureMessage = "Automated clients are not allowed to submit this form."

// botPattern matches known bot, crawler and automation user agents.
// Static reference data, compiled once; not derived per request.
var botPattern = regexp.MustCompile(`(?i)\b(bot|crawler|spider|scraper|curl|wget|python-requests|python-urllib|go-http-client|java/|libwww|headless|phantomjs|selenium|puppeteer|playwright|slurp|mediapartners|facebookexternalhit|semrush|ahrefs|mj12bot|dotbot|bytespider|petalbot|gptbot|ccbot|claudebot)\b`)

// BotSignature flags submissions whose user agent matches a known
// crawler signature, or whose derived browser profile is entirely
// empty, the signal of a non-browser HTTP client.
type BotSignature struct{}

// NewBotSignature creates the bot signature validator.
func NewBotSignature() *BotSignature {
	return &BotSignature{}
}

// Name implements Validator.
func (v *BotSignature) Name() string { return ValidatorBotSignature }

// Enabled implements Validator.
func (v *BotSignature) Enabled(eff settings.Effective) bool {
	return eff.Bool(settings.KeyBotSignatureEnabled)
}

// Check implements Validator.
func (v *BotSignature) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	ua := sc.UserAgent()

	if botPattern.MatchString(ua) {
		return spam(ValidatorBotSignature, botSignatureMessage)
	}

	profile := deriveClientProfile(ua)
	if profile.empty() {
		return spam(ValidatorBotSignature, botSignatureMessage)
	}

	return clean(ValidatorBotSignature)
}

// Challenge implements Validator.
func (v *BotSignature) Challenge(*request.SubmissionContext) string { return "" }

// OnSuccess implements Validator.
func (v *BotSignature) OnSuccess(context.Context, *request.SubmissionContext) {}

// clientProfile is the browser/platform/device triple derived from the
// user agent. All three empty means the client is not a browser.
type clientProfile struct {
	browser  string
	platform string
	device   string
}

func (p clientProfile) empty() bool {
	return p.browser == "" && p.platform == "" && p.device == ""
}

func deriveClientProfile(ua string) clientProfile {
	var p clientProfile
	lower := strings.ToLower(ua)

	switch {
	case strings.Contains(lower, "edg/"):
		p.browser = "edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		p.browser = "opera"
	case strings.Contains(lower, "chrome/"):
		p.browser = "chrome"
	case strings.Contains(lower, "firefox/"):
		p.browser = "firefox"
	case strings.Contains(lower, "safari/"):
		p.browser = "safari"
	}

	switch {
	case strings.Contains(lower, "windows"):
		p.platform = "windows"
	case strings.Contains(lower, "android"):
		p.platform = "android"
	case strings.Contains(lower, "iphone") || strings.Contains(lower, "ipad") || strings.Contains(lower, "ios"):
		p.platform = "ios"
	case strings.Contains(lower, "mac os") || strings.Contains(lower, "macintosh"):
		p.platform = "macos"
	case strings.Contains(lower, "linux"):
		p.platform = "linux"
	}

	switch {
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "iphone") || strings.Contains(lower, "android"):
		p.device = "mobile"
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		p.device = "tablet"
	case p.platform != "":
		p.device = "desktop"
	}

	return p
}
