// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestIPBlacklist(t *testing.T) {
	tests := []struct {
		name     string
		remoteIP string
		list     string
		wantSpam bool
	}{
		{"listed IP is blocked", "203.0.113.5", "203.0.113.5", true},
		{"listed IP among others is blocked", "203.0.113.5", "198.51.100.1\n203.0.113.5\n192.0.2.1", true},
		{"unlisted IP passes", "203.0.113.6", "203.0.113.5", false},
		{"prefix is not a match", "203.0.113.50", "203.0.113.5", false},
		{"empty list passes", "203.0.113.5", "", false},
		{"missing remote IP passes", "", "203.0.113.5", false},
		{"entries are not CIDR ranges", "203.0.113.7", "203.0.113.0/24", false},
	}

	v := NewIPBlacklist()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := withSettings(settings.Effective{settings.KeyIPBlacklist: tt.list})
			sc := submission(request.Meta{RemoteIP: tt.remoteIP}, nil)

			verdict := v.Check(context.Background(), sc, eff)
			if verdict.Spam != tt.wantSpam {
				t.Errorf("Check() spam = %v, want %v", verdict.Spam, tt.wantSpam)
			}
			if verdict.Spam && verdict.Message == "" {
				t.Error("spam verdict must carry a message")
			}
		})
	}
}

func TestIPBlacklistEnabled(t *testing.T) {
	v := NewIPBlacklist()
	if !v.Enabled(settings.Defaults()) {
		t.Error("enabled by default")
	}
	if v.Enabled(withSettings(settings.Effective{settings.KeyIPBlacklistEnabled: false})) {
		t.Error("disabled by setting")
	}
}

func TestBotSignature(t *testing.T) {
	tests := []struct {
		name     string
		ua       string
		wantSpam bool
	}{
		{"regular browser passes", browserUA, false},
		{"googlebot is blocked", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", true},
		{"curl is blocked", "curl/8.4.0", true},
		{"python requests is blocked", "python-requests/2.31.0", true},
		{"headless chrome is blocked", "Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0.0.0", true},
		{"empty user agent is blocked", "", true},
		{"opaque non-browser client is blocked", "MyCustomClient/1.0", true},
		{"mobile safari passes", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", false},
	}

	v := NewBotSignature()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := submission(request.Meta{UserAgent: tt.ua}, nil)
			verdict := v.Check(context.Background(), sc, settings.Defaults())
			if verdict.Spam != tt.wantSpam {
				t.Errorf("Check() spam = %v, want %v", verdict.Spam, tt.wantSpam)
			}
		})
	}
}

func TestDeriveClientProfile(t *testing.T) {
	p := deriveClientProfile(browserUA)
	if p.browser != "chrome" || p.platform != "windows" || p.device != "desktop" {
		t.Errorf("unexpected profile: %+v", p)
	}

	if !deriveClientProfile("NotARealBrowser").empty() {
		t.Error("opaque UA must derive an empty profile")
	}
}

func TestJSTiming(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string][]string
		wantSpam bool
	}{
		{
			name:     "token and positive elapsed pass",
			fields:   map[string][]string{FieldJSToken: {"1"}, FieldElapsedMS: {"2500"}},
			wantSpam: false,
		},
		{
			name:     "missing token is spam",
			fields:   map[string][]string{FieldElapsedMS: {"2500"}},
			wantSpam: true,
		},
		{
			name:     "empty token is spam",
			fields:   map[string][]string{FieldJSToken: {""}, FieldElapsedMS: {"2500"}},
			wantSpam: true,
		},
		{
			name:     "missing elapsed is spam",
			fields:   map[string][]string{FieldJSToken: {"1"}},
			wantSpam: true,
		},
		{
			name:     "zero elapsed is spam",
			fields:   map[string][]string{FieldJSToken: {"1"}, FieldElapsedMS: {"0"}},
			wantSpam: true,
		},
		{
			name:     "non-numeric elapsed is spam",
			fields:   map[string][]string{FieldJSToken: {"1"}, FieldElapsedMS: {"soon"}},
			wantSpam: true,
		},
	}

	v := NewJSTiming()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := submission(request.Meta{}, tt.fields)
			verdict := v.Check(context.Background(), sc, settings.Defaults())
			if verdict.Spam != tt.wantSpam {
				t.Errorf("Check() spam = %v, want %v", verdict.Spam, tt.wantSpam)
			}
		})
	}
}

func TestJSTimingChallengeEmbedsFields(t *testing.T) {
	c := NewJSTiming().Challenge(nil)
	if !strings.Contains(c, FieldJSToken) || !strings.Contains(c, FieldElapsedMS) {
		t.Error("challenge must reference both hidden fields")
	}
}

func TestContentRules(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		eff      settings.Effective
		wantSpam bool
		wantMsg  string
	}{
		{
			name:     "under URL limit passes",
			text:     "see https://a.example and https://b.example",
			eff:      settings.Defaults(),
			wantSpam: false,
		},
		{
			name:     "over URL limit is spam",
			text:     "https://a.example https://b.example http://c.example HTTPS://d.example",
			eff:      settings.Defaults(),
			wantSpam: true,
			wantMsg:  contentURLMessage,
		},
		{
			name: "URL limit respects override",
			text: "https://a.example https://b.example",
			eff: withSettings(settings.Effective{
				settings.KeyMaxURLs: int64(1),
			}),
			wantSpam: true,
			wantMsg:  contentURLMessage,
		},
		{
			name:     "bbcode url tag is spam",
			text:     "check [url=https://spam.example]this[/url] out",
			eff:      settings.Defaults(),
			wantSpam: true,
			wantMsg:  contentBBCodeMessage,
		},
		{
			name:     "square brackets alone pass",
			text:     "array[0] has [notes] inside",
			eff:      settings.Defaults(),
			wantSpam: false,
		},
		{
			name: "blacklisted term is spam",
			text: "Buy CHEAP pills now",
			eff: withSettings(settings.Effective{
				settings.KeyBlacklistTermsEnabled: true,
				settings.KeyBlacklistTerms:        []string{"cheap pills"},
			}),
			wantSpam: true,
			wantMsg:  contentTermMessage,
		},
		{
			name: "term matching is disabled by default",
			text: "Buy cheap pills now",
			eff: withSettings(settings.Effective{
				settings.KeyBlacklistTerms: []string{"cheap pills"},
			}),
			wantSpam: false,
		},
		{
			name:     "empty submission passes",
			text:     "",
			eff:      settings.Defaults(),
			wantSpam: false,
		},
	}

	v := NewContentRules()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields map[string][]string
			if tt.text != "" {
				fields = map[string][]string{"message": {tt.text}}
			}
			sc := submission(request.Meta{}, fields)

			verdict := v.Check(context.Background(), sc, tt.eff)
			if verdict.Spam != tt.wantSpam {
				t.Errorf("Check() spam = %v, want %v", verdict.Spam, tt.wantSpam)
			}
			if tt.wantMsg != "" && verdict.Message != tt.wantMsg {
				t.Errorf("Check() message = %q, want %q", verdict.Message, tt.wantMsg)
			}
		})
	}
}

func TestContentRulesEnabled(t *testing.T) {
	v := NewContentRules()
	if !v.Enabled(settings.Defaults()) {
		t.Error("enabled while any sub-rule is on")
	}

	off := withSettings(settings.Effective{
		settings.KeyMaxURLsEnabled:        false,
		settings.KeyBBCodeEnabled:         false,
		settings.KeyBlacklistTermsEnabled: false,
	})
	if v.Enabled(off) {
		t.Error("disabled when every sub-rule is off")
	}
}

func TestCountURLs(t *testing.T) {
	if got := CountURLs("https://a http://b no-scheme.example HTTPS://c"); got != 3 {
		t.Errorf("CountURLs() = %d, want 3", got)
	}
}

func TestDescribeRules(t *testing.T) {
	if got := DescribeRules(settings.Defaults()); got != "max_urls=3,bbcode" {
		t.Errorf("DescribeRules() = %q", got)
	}

	off := withSettings(settings.Effective{
		settings.KeyMaxURLsEnabled:        false,
		settings.KeyBBCodeEnabled:         false,
		settings.KeyBlacklistTermsEnabled: false,
	})
	if got := DescribeRules(off); got != "disabled" {
		t.Errorf("DescribeRules() = %q", got)
	}
}
