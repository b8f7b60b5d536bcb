// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package main is the entry point for the FormWarden server.
//
// FormWarden classifies form submissions as spam or legitimate by
// running a chain of independently-enabled validators: IP blacklist,
// bot signature, JavaScript timing, content rules, anti-replay timers
// and an optional external behavior-verification service. A whitelist
// short-circuit skips the chain entirely for trusted traffic.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 with layered sources (env > file > defaults)
//  2. Logging: global zerolog logger
//  3. Storage: BadgerDB for tokens, counters and setting overrides
//  4. Pipeline: settings resolver, token store, validators, orchestrator
//  5. HTTP server: Chi router with rate limiting and CORS
//
// Shutdown on SIGINT/SIGTERM stops accepting connections, waits for
// in-flight requests (10s timeout), then closes the store.
//
// Example:
//
//	export FORMWARDEN_STORAGE__PATH=/data/formwarden
//	export FORMWARDEN_BEHAVIOR__URL=https://verify.example.com/v1/check
//	export FORMWARDEN_BEHAVIOR__CREDENTIAL=secret
//	./formwarden
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/formwarden/formwarden/internal/api"
	"github.com/formwarden/formwarden/internal/audit"
	"github.com/formwarden/formwarden/internal/config"
	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/pipeline"
	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
	"github.com/formwarden/formwarden/internal/telemetry"
	"github.com/formwarden/formwarden/internal/token"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting formwarden")

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("storage close failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := token.NewStore(db, []byte(cfg.Security.TokenSecret))
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	tokens.StartSweepLoop(ctx, cfg.Pipeline.TokenSweepInterval)

	counters := telemetry.NewBadgerCounterStore(db)
	resolver := settings.NewResolver(settings.NewBadgerStore(db), globalSettings(cfg))
	orch := buildPipeline(cfg, resolver, tokens)

	parsers := request.NewRegistry()

	handler := api.NewHandler(orch, resolver, counters, parsers)
	router := api.NewRouter(handler, &api.MiddlewareConfig{
		CORSAllowedOrigins:    cfg.Security.CORSOrigins,
		AdminRateLimitReqs:    cfg.Security.AdminRateLimitReqs,
		AdminRateLimitWindow:  cfg.Security.AdminRateLimitWindow,
		PublicRateLimitReqs:   cfg.Security.PublicRateLimitReqs,
		PublicRateLimitWindow: cfg.Security.PublicRateLimitWindow,
		RateLimitDisabled:     cfg.Security.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}

// openStorage opens the shared BadgerDB instance. Badger's own logger
// is silenced; operational errors surface through our calls.
func openStorage(cfg config.StorageConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	return badger.Open(opts.WithLogger(nil))
}

// globalSettings seeds the resolver's global layer from the built-in
// defaults overlaid with deployment configuration.
func globalSettings(cfg *config.Config) settings.Effective {
	eff := settings.Defaults()

	p := cfg.Pipeline
	eff[settings.KeyIPBlacklistEnabled] = p.IPBlacklistEnabled
	eff[settings.KeyIPBlacklist] = p.IPBlacklist
	eff[settings.KeyBotSignatureEnabled] = p.BotSignatureEnabled
	eff[settings.KeyJSTimingEnabled] = p.JSTimingEnabled
	eff[settings.KeyTimerEnabled] = p.TimerEnabled
	eff[settings.KeyTimerMinMS] = p.TimerMinMS
	eff[settings.KeyMultiSubmitEnabled] = p.MultiSubmitEnabled
	eff[settings.KeyMultiSubmitMinMS] = p.MultiSubmitMinMS
	eff[settings.KeyMaxURLsEnabled] = p.MaxURLsEnabled
	eff[settings.KeyMaxURLs] = int64(p.MaxURLs)
	eff[settings.KeyBBCodeEnabled] = p.BBCodeEnabled
	eff[settings.KeyBlacklistTermsEnabled] = p.BlacklistTermsEnabled
	eff[settings.KeyBlacklistTerms] = p.BlacklistTerms
	eff[settings.KeyIPWhitelist] = p.IPWhitelist
	eff[settings.KeyEmailWhitelist] = p.EmailWhitelist
	eff[settings.KeyWhitelistAdmins] = p.WhitelistAdmins
	eff[settings.KeyWhitelistLoggedIn] = p.WhitelistLoggedIn

	b := cfg.Behavior
	eff[settings.KeyBehaviorEnabled] = b.URL != "" && b.Credential != ""
	eff[settings.KeyBehaviorCredential] = b.Credential
	eff[settings.KeyBehaviorFailClosed] = b.FailClosed

	return eff
}

// buildPipeline wires the validator set in its fixed evaluation order.
func buildPipeline(cfg *config.Config, resolver *settings.Resolver, tokens *token.Store) *pipeline.Orchestrator {
	var behavior *pipeline.BehaviorAPI
	if cfg.Behavior.URL != "" && cfg.Behavior.Credential != "" {
		behavior = pipeline.NewBehaviorAPI(pipeline.BehaviorConfig{
			URL:        cfg.Behavior.URL,
			Credential: cfg.Behavior.Credential,
			Timeout:    cfg.Behavior.Timeout,
			FailClosed: cfg.Behavior.FailClosed,
		})
	}

	validators := []pipeline.Validator{
		pipeline.NewIPBlacklist(),
		pipeline.NewBotSignature(),
		pipeline.NewJSTiming(),
		pipeline.NewContentRules(),
		pipeline.NewTimer(tokens),
		pipeline.NewMultiSubmit(tokens),
	}
	if behavior != nil {
		validators = append(validators, behavior)
	}

	return pipeline.NewOrchestrator(resolver, pipeline.NewWhitelist(), validators, behavior, audit.NewZerologSink())
}
