// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
	"github.com/formwarden/formwarden/internal/telemetry"
)

// ValidatorBehaviorAPI names the external behavior verification validator.
const ValidatorBehaviorAPI = "behavior_api"

const behaviorMessage = "We could not verify this submission. Please try again."

// VerdictHuman is the remote service's verdict for legitimate traffic.
const VerdictHuman = "human"

// BehaviorConfig configures the remote verification client.
type BehaviorConfig struct {
	URL        string
	Credential string
	Timeout    time.Duration

	// FailClosed treats verifier errors as spam. Default is fail-open
	// so transient network trouble does not block legitimate traffic;
	// the per-integration setting can override either way.
	FailClosed bool
}

// verifyRequest is the JSON body sent to the remote service.
type verifyRequest struct {
	Nonce string `json:"nonce"`
}

// verifyResponse is the remote service's reply.
type verifyResponse struct {
	OK      bool   `json:"ok"`
	Verdict string `json:"verdict"`
}

// BehaviorAPI submits the client-side behavior-proof token to a remote
// verification service. A missing proof is spam regardless of policy:
// the proof's absence is exactly what the check exists to catch. The
// HTTP round-trip is bounded by a short timeout and wrapped in a
// circuit breaker so a degraded verifier cannot stall the pipeline,
// nor burn the full timeout on every request while it is down.
type BehaviorAPI struct {
	cfg     BehaviorConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*verifyResponse]
}

// NewBehaviorAPI creates the external behavior validator.
func NewBehaviorAPI(cfg BehaviorConfig) *BehaviorAPI {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[*verifyResponse](gobreaker.Settings{
		Name:    "behavior-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("behavior API circuit state changed")
		},
	})

	return &BehaviorAPI{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// Name implements Validator.
func (v *BehaviorAPI) Name() string { return ValidatorBehaviorAPI }

// Enabled implements Validator: the check requires both the setting
// flag and a configured credential.
func (v *BehaviorAPI) Enabled(eff settings.Effective) bool {
	return eff.Bool(settings.KeyBehaviorEnabled) && v.cfg.Credential != "" && v.cfg.URL != ""
}

// Managed reports whether the fully-managed remote scoring mode is
// active, in which case the orchestrator narrows the pipeline to the
// whitelist plus this validator.
func (v *BehaviorAPI) Managed(eff settings.Effective) bool {
	return v.Enabled(eff)
}

// Check implements Validator.
func (v *BehaviorAPI) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	nonce := sc.Fields().First(FieldBehaviorToken)
	if nonce == "" {
		// Fail closed on missing proof.
		telemetry.BehaviorAPIRequests.WithLabelValues("spam").Inc()
		return spam(ValidatorBehaviorAPI, behaviorMessage)
	}

	resp, err := v.breaker.Execute(func() (*verifyResponse, error) {
		return v.verify(ctx, nonce)
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open"
		}
		telemetry.BehaviorAPIRequests.WithLabelValues(outcome).Inc()
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Msg("behavior API verification failed")

		if v.failClosed(eff) {
			return spam(ValidatorBehaviorAPI, behaviorMessage)
		}
		return clean(ValidatorBehaviorAPI)
	}

	if !resp.OK || resp.Verdict != VerdictHuman {
		telemetry.BehaviorAPIRequests.WithLabelValues("spam").Inc()
		return spam(ValidatorBehaviorAPI, behaviorMessage)
	}

	telemetry.BehaviorAPIRequests.WithLabelValues("human").Inc()
	return clean(ValidatorBehaviorAPI)
}

// failClosed resolves the error policy: the per-integration setting
// wins when present, otherwise the deployment default applies.
func (v *BehaviorAPI) failClosed(eff settings.Effective) bool {
	if _, ok := eff[settings.KeyBehaviorFailClosed]; ok {
		return eff.Bool(settings.KeyBehaviorFailClosed)
	}
	return v.cfg.FailClosed
}

// verify performs the remote round-trip.
func (v *BehaviorAPI) verify(ctx context.Context, nonce string) (*verifyResponse, error) {
	body, err := json.Marshal(verifyRequest{Nonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.cfg.Credential)

	httpResp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("behavior API request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("behavior API returned status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read behavior API response: %w", err)
	}

	var resp verifyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode behavior API response: %w", err)
	}
	return &resp, nil
}

// Challenge implements Validator. The behavior proof is produced by
// the remote service's client-side widget; the server embeds nothing.
func (v *BehaviorAPI) Challenge(*request.SubmissionContext) string { return "" }

// OnSuccess implements Validator.
func (v *BehaviorAPI) OnSuccess(context.Context, *request.SubmissionContext) {}

// SetHTTPClient overrides the HTTP client. Test use only.
func (v *BehaviorAPI) SetHTTPClient(c *http.Client) {
	v.client = c
}
