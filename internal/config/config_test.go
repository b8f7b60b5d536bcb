// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, 8710, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, int64(2000), cfg.Pipeline.TimerMinMS)
	assert.Equal(t, int64(500), cfg.Pipeline.MultiSubmitMinMS)
	assert.Equal(t, 3, cfg.Pipeline.MaxURLs)
	assert.Equal(t, 5*time.Second, cfg.Behavior.Timeout)
	assert.Equal(t, time.Hour, cfg.Pipeline.TokenSweepInterval)
	assert.False(t, cfg.Behavior.FailClosed)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
pipeline:
  timer_min_ms: 4000
  blacklist_terms_enabled: true
  blacklist_terms:
    - cheap pills
behavior:
  url: https://verify.example.com/v1/check
  credential: secret
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, int64(4000), cfg.Pipeline.TimerMinMS)
	assert.True(t, cfg.Pipeline.BlacklistTermsEnabled)
	assert.Equal(t, []string{"cheap pills"}, cfg.Pipeline.BlacklistTerms)
	assert.Equal(t, "secret", cfg.Behavior.Credential)

	// Untouched keys keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, int64(500), cfg.Pipeline.MultiSubmitMinMS)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("FORMWARDEN_SERVER__PORT", "9100")
	t.Setenv("FORMWARDEN_PIPELINE__TIMER_MIN_MS", "2500")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, int64(2500), cfg.Pipeline.TimerMinMS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFrom("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }, true},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }, true},
		{"no storage path", func(c *Config) { c.Storage.Path = "" }, true},
		{"in-memory needs no path", func(c *Config) { c.Storage.Path = ""; c.Storage.InMemory = true }, false},
		{"credential without url", func(c *Config) { c.Behavior.Credential = "x" }, true},
		{"negative timer minimum", func(c *Config) { c.Pipeline.TimerMinMS = -1 }, true},
		{"zero rate limit while enabled", func(c *Config) { c.Security.PublicRateLimitReqs = 0 }, true},
		{"zero rate limit while disabled", func(c *Config) {
			c.Security.PublicRateLimitReqs = 0
			c.Security.RateLimitDisabled = true
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
