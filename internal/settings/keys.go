// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package settings resolves effective pipeline configuration from three
// layers: process-wide global defaults, integration-level overrides and
// form-level overrides. Form wins over integration wins over global; an
// override layer only participates when its record is enabled.
package settings

// Setting keys recognized by the pipeline. The same names appear in
// override records, the settings API and validator lookups.
const (
	KeyIPBlacklistEnabled  = "ip_blacklist_enabled"
	KeyIPBlacklist         = "ip_blacklist"
	KeyBotSignatureEnabled = "bot_signature_enabled"
	KeyJSTimingEnabled     = "js_timing_enabled"

	KeyTimerEnabled       = "timer_enabled"
	KeyTimerMinMS         = "timer_min_ms"
	KeyMultiSubmitEnabled = "multi_submit_enabled"
	KeyMultiSubmitMinMS   = "multi_submit_min_ms"

	KeyMaxURLsEnabled        = "max_urls_enabled"
	KeyMaxURLs               = "max_urls"
	KeyBBCodeEnabled         = "bbcode_enabled"
	KeyBlacklistTermsEnabled = "blacklist_terms_enabled"
	KeyBlacklistTerms        = "blacklist_terms"

	KeyIPWhitelist       = "ip_whitelist"
	KeyEmailWhitelist    = "email_whitelist"
	KeyWhitelistAdmins   = "whitelist_admins"
	KeyWhitelistLoggedIn = "whitelist_logged_in"

	KeyBehaviorEnabled    = "behavior_enabled"
	KeyBehaviorCredential = "behavior_credential"
	KeyBehaviorFailClosed = "behavior_fail_closed"
)

// overridable is the fixed allow-list of keys that integration- and
// form-level records may set. Unknown keys are dropped silently on save.
var overridable = map[string]struct{}{
	KeyIPBlacklistEnabled:    {},
	KeyIPBlacklist:           {},
	KeyBotSignatureEnabled:   {},
	KeyJSTimingEnabled:       {},
	KeyTimerEnabled:          {},
	KeyTimerMinMS:            {},
	KeyMultiSubmitEnabled:    {},
	KeyMultiSubmitMinMS:      {},
	KeyMaxURLsEnabled:        {},
	KeyMaxURLs:               {},
	KeyBBCodeEnabled:         {},
	KeyBlacklistTermsEnabled: {},
	KeyBlacklistTerms:        {},
	KeyIPWhitelist:           {},
	KeyEmailWhitelist:        {},
	KeyWhitelistAdmins:       {},
	KeyWhitelistLoggedIn:     {},
	KeyBehaviorEnabled:       {},
	KeyBehaviorFailClosed:    {},
}

// Overridable reports whether the key may be set at the integration or
// form layer. The behavior credential is deliberately global-only.
func Overridable(key string) bool {
	_, ok := overridable[key]
	return ok
}

// Defaults returns the built-in global settings. Every recognized key
// has a value here, so resolution never yields an absent key.
func Defaults() Effective {
	return Effective{
		KeyIPBlacklistEnabled:  true,
		KeyIPBlacklist:         "",
		KeyBotSignatureEnabled: true,
		KeyJSTimingEnabled:     false,

		KeyTimerEnabled:       true,
		KeyTimerMinMS:         int64(2000),
		KeyMultiSubmitEnabled: true,
		KeyMultiSubmitMinMS:   int64(500),

		KeyMaxURLsEnabled:        true,
		KeyMaxURLs:               int64(3),
		KeyBBCodeEnabled:         true,
		KeyBlacklistTermsEnabled: false,
		KeyBlacklistTerms:        []string{},

		KeyIPWhitelist:       "",
		KeyEmailWhitelist:    []string{},
		KeyWhitelistAdmins:   true,
		KeyWhitelistLoggedIn: false,

		KeyBehaviorEnabled:    false,
		KeyBehaviorCredential: "",
		KeyBehaviorFailClosed: false,
	}
}
