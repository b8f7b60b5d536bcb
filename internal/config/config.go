// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package config loads service configuration via Koanf v2 with layered
// sources (highest priority wins): environment variables, config file,
// built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the FormWarden service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Storage   StorageConfig   `koanf:"storage"`
	Security  SecurityConfig  `koanf:"security"`
	Behavior  BehaviorConfig  `koanf:"behavior"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig configures the BadgerDB store backing tokens, counters
// and settings overrides.
type StorageConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Intended for
	// development and tests only: tokens and counters do not survive
	// a restart.
	InMemory bool `koanf:"in_memory"`
}

// SecurityConfig configures request limits and CORS for the API surface.
type SecurityConfig struct {
	// AdminRateLimitReqs / AdminRateLimitWindow bound settings mutations.
	AdminRateLimitReqs   int           `koanf:"admin_rate_limit_reqs"`
	AdminRateLimitWindow time.Duration `koanf:"admin_rate_limit_window"`

	// PublicRateLimitReqs / PublicRateLimitWindow bound challenge
	// issuance and submission checks.
	PublicRateLimitReqs   int           `koanf:"public_rate_limit_reqs"`
	PublicRateLimitWindow time.Duration `koanf:"public_rate_limit_window"`

	RateLimitDisabled bool     `koanf:"rate_limit_disabled"`
	CORSOrigins       []string `koanf:"cors_origins"`

	// TokenSecret keys the anti-replay token derivation. Generated at
	// startup when empty; set it explicitly when running more than one
	// replica against shared storage.
	TokenSecret string `koanf:"token_secret"`
}

// BehaviorConfig configures the external behavior-verification service.
type BehaviorConfig struct {
	URL        string        `koanf:"url"`
	Credential string        `koanf:"credential"`
	Timeout    time.Duration `koanf:"timeout"`

	// FailClosed treats verifier errors and timeouts as spam. The
	// default (false) fails open so transient network trouble does not
	// block legitimate traffic.
	FailClosed bool `koanf:"fail_closed"`
}

// PipelineConfig seeds the global layer of the settings resolver.
// Integration- and form-level overrides are managed at runtime through
// the settings API, not here.
type PipelineConfig struct {
	IPBlacklistEnabled  bool `koanf:"ip_blacklist_enabled"`
	BotSignatureEnabled bool `koanf:"bot_signature_enabled"`
	JSTimingEnabled     bool `koanf:"js_timing_enabled"`
	TimerEnabled        bool `koanf:"timer_enabled"`
	MultiSubmitEnabled  bool `koanf:"multi_submit_enabled"`

	TimerMinMS       int64 `koanf:"timer_min_ms"`
	MultiSubmitMinMS int64 `koanf:"multi_submit_min_ms"`

	MaxURLsEnabled        bool     `koanf:"max_urls_enabled"`
	MaxURLs               int      `koanf:"max_urls"`
	BBCodeEnabled         bool     `koanf:"bbcode_enabled"`
	BlacklistTermsEnabled bool     `koanf:"blacklist_terms_enabled"`
	BlacklistTerms        []string `koanf:"blacklist_terms"`

	IPBlacklist    string   `koanf:"ip_blacklist"`
	IPWhitelist    string   `koanf:"ip_whitelist"`
	EmailWhitelist []string `koanf:"email_whitelist"`

	WhitelistAdmins   bool `koanf:"whitelist_admins"`
	WhitelistLoggedIn bool `koanf:"whitelist_logged_in"`

	// TokenSweepInterval controls how often expired anti-replay tokens
	// are purged. Token lifetime itself is fixed at 24h.
	TokenSweepInterval time.Duration `koanf:"token_sweep_interval"`
}

// TelemetryConfig configures counter persistence.
type TelemetryConfig struct {
	// Namespace prefixes Prometheus metric names.
	Namespace string `koanf:"namespace"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8710,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Path:     "/data/formwarden",
			InMemory: false,
		},
		Security: SecurityConfig{
			AdminRateLimitReqs:    20,
			AdminRateLimitWindow:  1 * time.Minute,
			PublicRateLimitReqs:   300,
			PublicRateLimitWindow: 1 * time.Minute,
			RateLimitDisabled:     false,
			CORSOrigins:           []string{},
			TokenSecret:           "",
		},
		Behavior: BehaviorConfig{
			URL:        "",
			Credential: "",
			Timeout:    5 * time.Second,
			FailClosed: false,
		},
		Pipeline: PipelineConfig{
			IPBlacklistEnabled:    true,
			BotSignatureEnabled:   true,
			JSTimingEnabled:       false,
			TimerEnabled:          true,
			MultiSubmitEnabled:    true,
			TimerMinMS:            2000,
			MultiSubmitMinMS:      500,
			MaxURLsEnabled:        true,
			MaxURLs:               3,
			BBCodeEnabled:         true,
			BlacklistTermsEnabled: false,
			BlacklistTerms:        []string{},
			IPBlacklist:           "",
			IPWhitelist:           "",
			EmailWhitelist:        []string{},
			WhitelistAdmins:       true,
			WhitelistLoggedIn:     false,
			TokenSweepInterval:    1 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Namespace: "formwarden",
		},
	}
}

// Validate checks the loaded configuration for values that would make
// the service misbehave at runtime.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	if c.Behavior.Timeout <= 0 {
		return fmt.Errorf("behavior.timeout must be positive, got %s", c.Behavior.Timeout)
	}
	if c.Behavior.URL == "" && c.Behavior.Credential != "" {
		return fmt.Errorf("behavior.credential is set but behavior.url is empty")
	}
	if c.Pipeline.TimerMinMS < 0 || c.Pipeline.MultiSubmitMinMS < 0 {
		return fmt.Errorf("pipeline minimum elapsed times must be non-negative")
	}
	if c.Pipeline.MaxURLs < 0 {
		return fmt.Errorf("pipeline.max_urls must be non-negative, got %d", c.Pipeline.MaxURLs)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.AdminRateLimitReqs <= 0 || c.Security.PublicRateLimitReqs <= 0 {
			return fmt.Errorf("rate limit request counts must be positive when limiting is enabled")
		}
	}
	return nil
}
