// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"time"

	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
	"github.com/formwarden/formwarden/internal/telemetry"
)

// Orchestrator holds the ordered validator set and aggregates their
// verdicts. Construct one per process and share it across requests;
// evaluation itself is synchronous and stateless apart from token
// consumption and counter deltas.
type Orchestrator struct {
	resolver   *settings.Resolver
	whitelist  *Whitelist
	validators []Validator
	behavior   *BehaviorAPI
	observers  []Observer
	audit      AuditSink
}

// NewOrchestrator assembles the pipeline. The validator slice fixes
// evaluation order for the lifetime of the process: order decides
// which message a blocked submitter sees, never whether a validator
// runs. behavior may be nil when no remote verifier is configured.
func NewOrchestrator(resolver *settings.Resolver, whitelist *Whitelist, validators []Validator, behavior *BehaviorAPI, audit AuditSink) *Orchestrator {
	if audit == nil {
		audit = NopAuditSink{}
	}
	return &Orchestrator{
		resolver:   resolver,
		whitelist:  whitelist,
		validators: validators,
		behavior:   behavior,
		audit:      audit,
	}
}

// RegisterObserver appends an observer invoked at the defined pipeline
// stages. Must be called before the orchestrator starts serving.
func (o *Orchestrator) RegisterObserver(obs Observer) {
	o.observers = append(o.observers, obs)
	logging.Info().Str("observer", "registered").Msg("pipeline observer added")
}

// Validators returns the configured validator set in evaluation order.
func (o *Orchestrator) Validators() []Validator {
	out := make([]Validator, len(o.validators))
	copy(out, o.validators)
	return out
}

// Evaluate classifies one submission. Every enabled validator runs and
// every spam hit is counted, but only the first hit's message reaches
// the caller: operators get full per-defense telemetry while the
// submitter learns as little as possible.
//
// The buffer accumulates counter deltas; the caller flushes it exactly
// once at the end of the request.
func (o *Orchestrator) Evaluate(ctx context.Context, sc *request.SubmissionContext, buf *telemetry.Buffer) (Result, error) {
	if sc == nil {
		return Result{}, ErrNilContext
	}

	start := time.Now()
	defer func() {
		telemetry.EvaluateDuration.Observe(time.Since(start).Seconds())
	}()

	eff := o.resolver.Resolve(ctx, sc.IntegrationID(), sc.FormID())
	buf.Record(telemetry.CounterChecksTotal, 1)

	for _, obs := range o.observers {
		obs.BeforeEvaluate(ctx, sc)
	}

	if o.whitelist.Matches(ctx, sc, eff) {
		buf.Record(telemetry.CounterChecksClean, 1)
		telemetry.ChecksTotal.WithLabelValues("clean").Inc()

		result := Result{Spam: false}
		for _, obs := range o.observers {
			obs.AfterEvaluate(ctx, sc, result)
		}
		return result, nil
	}

	result := o.runValidators(ctx, sc, eff, buf)

	if result.Spam {
		buf.Record(telemetry.CounterChecksSpam, 1)
		telemetry.ChecksTotal.WithLabelValues("spam").Inc()
	} else {
		buf.Record(telemetry.CounterChecksClean, 1)
		telemetry.ChecksTotal.WithLabelValues("clean").Inc()
	}

	for _, obs := range o.observers {
		obs.AfterEvaluate(ctx, sc, result)
	}
	return result, nil
}

// activeSet selects the validators for this evaluation. When the
// fully-managed remote scoring mode is active, the local heuristic
// stack steps aside: remote scoring replaces it rather than
// supplementing it.
func (o *Orchestrator) activeSet(eff settings.Effective) []Validator {
	if o.behavior != nil && o.behavior.Managed(eff) {
		return []Validator{o.behavior}
	}
	return o.validators
}

func (o *Orchestrator) runValidators(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective, buf *telemetry.Buffer) Result {
	var result Result

	active := o.activeSet(eff)
	for _, v := range active {
		if !v.Enabled(eff) {
			continue
		}

		verdict := v.Check(ctx, sc, eff)
		for _, obs := range o.observers {
			obs.AfterValidator(ctx, sc, verdict)
		}
		if !verdict.Spam {
			continue
		}

		buf.Record(v.Name(), 1)
		telemetry.ValidatorSpamTotal.WithLabelValues(v.Name()).Inc()

		if !result.Spam {
			// First hit wins the user-facing message.
			result = Result{Spam: true, Message: verdict.Message, Validator: v.Name()}
			o.audit.Log(v.Name(), auditFields(sc), true, verdict.Message)
		}
	}

	if !result.Spam {
		for _, v := range active {
			if v.Enabled(eff) {
				v.OnSuccess(ctx, sc)
			}
		}
	}
	return result
}

// Challenges collects every enabled validator's render-time challenge,
// keyed by validator name. The integration embeds these when serving
// the form.
func (o *Orchestrator) Challenges(ctx context.Context, sc *request.SubmissionContext) map[string]string {
	eff := o.resolver.Resolve(ctx, sc.IntegrationID(), sc.FormID())

	out := make(map[string]string)
	for _, v := range o.activeSet(eff) {
		if !v.Enabled(eff) {
			continue
		}
		if c := v.Challenge(sc); c != "" {
			out[v.Name()] = c
		}
	}
	return out
}

func auditFields(sc *request.SubmissionContext) map[string]string {
	return map[string]string{
		"remote_ip":   sc.RemoteIP(),
		"user_agent":  sc.UserAgent(),
		"integration": sc.IntegrationID(),
		"form":        sc.FormID(),
	}
}
