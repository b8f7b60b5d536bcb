// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

// ValidatorContentRules names the rule-based content validator.
const ValidatorContentRules = "content_rules"

const (
	contentURLMessage    = "Your submission contains too many links."
	contentBBCodeMessage = "Your submission contains markup that is not allowed."
	contentTermMessage   = "Your submission contains disallowed content."
)

var (
	urlPattern = regexp.MustCompile(`(?i)https?://`)

	// bbcodePattern matches BBCode-style tags abused for link and
	// formatting injection in plain-text form fields.
	bbcodePattern = regexp.MustCompile(`(?i)\[/?(url|link|img|b|i|u|code|quote|size|color|email)(=[^\]]*)?\]`)
)

// ContentRules applies the rule-based content checks: maximum URL
// count, forbidden BBCode tags, and the site-wide disallowed-terms
// list. Each sub-rule is independently toggleable; the first match
// wins within the validator.
type ContentRules struct{}

// NewContentRules creates the content rules validator.
func NewContentRules() *ContentRules {
	return &ContentRules{}
}

// Name implements Validator.
func (v *ContentRules) Name() string { return ValidatorContentRules }

// Enabled implements Validator. The validator participates when any
// sub-rule is on; each sub-rule re-checks its own flag.
func (v *ContentRules) Enabled(eff settings.Effective) bool {
	return eff.Bool(settings.KeyMaxURLsEnabled) ||
		eff.Bool(settings.KeyBBCodeEnabled) ||
		eff.Bool(settings.KeyBlacklistTermsEnabled)
}

// Check implements Validator.
func (v *ContentRules) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	text := sc.Fields().JoinedText()
	if text == "" {
		return clean(ValidatorContentRules)
	}

	if eff.Bool(settings.KeyMaxURLsEnabled) {
		maxURLs := int(eff.Int64(settings.KeyMaxURLs))
		if count := len(urlPattern.FindAllStringIndex(text, -1)); count > maxURLs {
			return spam(ValidatorContentRules, contentURLMessage)
		}
	}

	if eff.Bool(settings.KeyBBCodeEnabled) && bbcodePattern.MatchString(text) {
		return spam(ValidatorContentRules, contentBBCodeMessage)
	}

	if eff.Bool(settings.KeyBlacklistTermsEnabled) {
		lower := strings.ToLower(text)
		for _, term := range eff.StrList(settings.KeyBlacklistTerms) {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			if strings.Contains(lower, term) {
				return spam(ValidatorContentRules, contentTermMessage)
			}
		}
	}

	return clean(ValidatorContentRules)
}

// Challenge implements Validator.
func (v *ContentRules) Challenge(*request.SubmissionContext) string { return "" }

// OnSuccess implements Validator.
func (v *ContentRules) OnSuccess(context.Context, *request.SubmissionContext) {}

// CountURLs reports how many http(s) URLs appear in the text. Exposed
// for the settings editor's rule preview.
func CountURLs(text string) int {
	return len(urlPattern.FindAllStringIndex(text, -1))
}

// DescribeRules summarizes the active content sub-rules for diagnostics.
func DescribeRules(eff settings.Effective) string {
	var parts []string
	if eff.Bool(settings.KeyMaxURLsEnabled) {
		parts = append(parts, fmt.Sprintf("max_urls=%d", eff.Int64(settings.KeyMaxURLs)))
	}
	if eff.Bool(settings.KeyBBCodeEnabled) {
		parts = append(parts, "bbcode")
	}
	if eff.Bool(settings.KeyBlacklistTermsEnabled) {
		parts = append(parts, fmt.Sprintf("terms=%d", len(eff.StrList(settings.KeyBlacklistTerms))))
	}
	if len(parts) == 0 {
		return "disabled"
	}
	return strings.Join(parts, ",")
}
