// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/request"
	"github.com/formwarden/formwarden/internal/settings"
	"github.com/formwarden/formwarden/internal/token"
)

// Validator names for the two timer-store-backed checks.
const (
	ValidatorTimer       = "timer"
	ValidatorMultiSubmit = "multi_submit"
)

const (
	timerMessage       = "Your submission was sent too quickly. Please wait a moment and try again."
	multiSubmitMessage = "This form was already submitted. Please reload the page to submit again."
)

// timerCheck is the shared engine behind the minimum-elapsed-time
// validator and the duplicate-submission guard. Both prove that a
// token we issued exists in the store and measure its age; they differ
// only in field name, threshold and message.
//
// The token's whole purpose is proving its own existence, so any store
// failure is treated as spam: this validator fails closed where the
// settings layer fails open.
type timerCheck struct {
	name       string
	field      string
	enabledKey string
	minKey     string
	message    string

	store *token.Store
	now   func() time.Time
}

// Name implements Validator.
func (t *timerCheck) Name() string { return t.name }

// Enabled implements Validator.
func (t *timerCheck) Enabled(eff settings.Effective) bool {
	return eff.Bool(t.enabledKey)
}

// Check implements Validator.
func (t *timerCheck) Check(ctx context.Context, sc *request.SubmissionContext, eff settings.Effective) Verdict {
	hash := sc.Fields().First(t.field)
	if hash == "" {
		return spam(t.name, t.message)
	}

	tok, err := t.store.Get(ctx, hash)
	if errors.Is(err, token.ErrNotFound) {
		// Expired, swept, forged, or already consumed.
		return spam(t.name, t.message)
	}
	if err != nil {
		log := logging.Ctx(ctx)
		log.Error().Err(err).Str("validator", t.name).Msg("token store read failed")
		return spam(t.name, t.message)
	}

	minElapsed := time.Duration(eff.Int64(t.minKey)) * time.Millisecond
	if tok.Age(t.now()) < minElapsed {
		return spam(t.name, t.message)
	}

	return clean(t.name)
}

// Challenge implements Validator: the token hash to embed as a hidden
// field in the rendered form.
func (t *timerCheck) Challenge(sc *request.SubmissionContext) string {
	hash, err := t.store.Issue(context.Background(), sc.RemoteIP())
	if err != nil {
		logging.Error().Err(err).Str("validator", t.name).Msg("token issue failed")
		return ""
	}
	return hash
}

// OnSuccess implements Validator: a clean evaluation consumes the
// token, making replays of the same form instance fail the next check.
func (t *timerCheck) OnSuccess(ctx context.Context, sc *request.SubmissionContext) {
	hash := sc.Fields().First(t.field)
	if hash == "" {
		return
	}
	if _, err := t.store.Consume(ctx, hash); err != nil {
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Str("validator", t.name).Msg("token consume failed")
	}
}

// NewTimer creates the minimum-elapsed-time validator: a submission
// arriving sooner than the configured minimum after its form was
// rendered is automation, not a human.
func NewTimer(store *token.Store) Validator {
	return &timerCheck{
		name:       ValidatorTimer,
		field:      FieldTimerToken,
		enabledKey: settings.KeyTimerEnabled,
		minKey:     settings.KeyTimerMinMS,
		message:    timerMessage,
		store:      store,
		now:        time.Now,
	}
}

// NewMultiSubmit creates the duplicate-submission guard: a second
// instance of the timer engine with its own field and threshold,
// preventing rapid duplicate submits of the same form instance.
func NewMultiSubmit(store *token.Store) Validator {
	return &timerCheck{
		name:       ValidatorMultiSubmit,
		field:      FieldSubmitToken,
		enabledKey: settings.KeyMultiSubmitEnabled,
		minKey:     settings.KeyMultiSubmitMinMS,
		message:    multiSubmitMessage,
		store:      store,
		now:        time.Now,
	}
}

// NewTimerWithClock is NewTimer with an injectable time source for tests.
func NewTimerWithClock(store *token.Store, now func() time.Time) Validator {
	t := NewTimer(store).(*timerCheck)
	t.now = now
	return t
}

// NewMultiSubmitWithClock is NewMultiSubmit with an injectable time source.
func NewMultiSubmitWithClock(store *token.Store, now func() time.Time) Validator {
	t := NewMultiSubmit(store).(*timerCheck)
	t.now = now
	return t
}
