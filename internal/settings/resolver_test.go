// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewResolver(NewBadgerStore(db), Defaults())
}

func TestResolveDefaultsOnly(t *testing.T) {
	r := newTestResolver(t)

	eff := r.Resolve(context.Background(), "", "")
	assert.Equal(t, int64(2000), eff.Int64(KeyTimerMinMS))
	assert.True(t, eff.Bool(KeyTimerEnabled))
	assert.False(t, eff.Bool(KeyJSTimingEnabled))
}

func TestResolveLayering(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	// Integration layer overrides global; form layer overrides integration.
	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", true, map[string]any{
		KeyTimerMinMS:       int64(3000),
		KeyJSTimingEnabled:  true,
		KeyMultiSubmitMinMS: int64(800),
	}))
	require.NoError(t, r.SaveFormOverrides(ctx, "shopfront", "contact", true, map[string]any{
		KeyTimerMinMS: int64(5000),
	}))

	eff := r.Resolve(ctx, "shopfront", "contact")
	assert.Equal(t, int64(5000), eff.Int64(KeyTimerMinMS), "form layer wins")
	assert.True(t, eff.Bool(KeyJSTimingEnabled), "integration layer fills form-layer gaps")
	assert.Equal(t, int64(800), eff.Int64(KeyMultiSubmitMinMS))

	eff = r.Resolve(ctx, "shopfront", "")
	assert.Equal(t, int64(3000), eff.Int64(KeyTimerMinMS), "no form layer without a form ID")

	eff = r.Resolve(ctx, "other", "contact")
	assert.Equal(t, int64(2000), eff.Int64(KeyTimerMinMS), "overrides are scoped per integration")
}

func TestResolveDisabledRecordContributesNothing(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	// A disabled middle layer must not mask the layers around it.
	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", false, map[string]any{
		KeyTimerMinMS: int64(9999),
	}))
	require.NoError(t, r.SaveFormOverrides(ctx, "shopfront", "contact", true, map[string]any{
		KeyMaxURLs: int64(1),
	}))

	eff := r.Resolve(ctx, "shopfront", "contact")
	assert.Equal(t, int64(2000), eff.Int64(KeyTimerMinMS), "disabled record is skipped")
	assert.Equal(t, int64(1), eff.Int64(KeyMaxURLs), "form layer still applies")

	// And the other way around: a disabled form layer leaves the
	// integration value in effect.
	require.NoError(t, r.SaveIntegrationOverrides(ctx, "blog", true, map[string]any{
		KeyTimerMinMS: int64(3000),
	}))
	require.NoError(t, r.SaveFormOverrides(ctx, "blog", "comments", false, map[string]any{
		KeyTimerMinMS: int64(7000),
	}))

	eff = r.Resolve(ctx, "blog", "comments")
	assert.Equal(t, int64(3000), eff.Int64(KeyTimerMinMS))
}

func TestResolveDropsNonOverridableKeys(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", true, map[string]any{
		KeyBehaviorCredential: "stolen",
		"bogus_key":           true,
		KeyTimerMinMS:         int64(3000),
	}))

	eff := r.Resolve(ctx, "shopfront", "")
	assert.Equal(t, "", eff.Str(KeyBehaviorCredential), "credential is global-only")
	assert.Equal(t, int64(3000), eff.Int64(KeyTimerMinMS))

	rec, err := r.GetIntegrationOverrides(ctx, "shopfront")
	require.NoError(t, err)
	assert.NotContains(t, rec.Values, KeyBehaviorCredential)
	assert.NotContains(t, rec.Values, "bogus_key")
}

func TestSaveEmptyDisabledRecordDeletes(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", true, map[string]any{
		KeyTimerMinMS: int64(3000),
	}))
	_, err := r.GetIntegrationOverrides(ctx, "shopfront")
	require.NoError(t, err)

	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", false, nil))
	_, err = r.GetIntegrationOverrides(ctx, "shopfront")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresIdentifiers(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	assert.Error(t, r.SaveIntegrationOverrides(ctx, "", true, nil))
	assert.Error(t, r.SaveFormOverrides(ctx, "shopfront", "", true, nil))
	assert.Error(t, r.SaveFormOverrides(ctx, "", "contact", true, nil))
}

func TestSources(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, r.SaveIntegrationOverrides(ctx, "shopfront", true, map[string]any{
		KeyTimerMinMS:      int64(3000),
		KeyJSTimingEnabled: true,
	}))
	require.NoError(t, r.SaveFormOverrides(ctx, "shopfront", "contact", true, map[string]any{
		KeyTimerMinMS: int64(5000),
	}))

	sources := r.Sources(ctx, "shopfront", "contact")
	assert.Equal(t, LayerForm, sources[KeyTimerMinMS])
	assert.Equal(t, LayerIntegration, sources[KeyJSTimingEnabled])
	assert.Equal(t, LayerGlobal, sources[KeyMaxURLs])
}

type failingStore struct{}

func (failingStore) GetOverrides(context.Context, string) (*OverrideRecord, error) {
	return nil, errors.New("storage down")
}
func (failingStore) PutOverrides(context.Context, string, *OverrideRecord) error {
	return errors.New("storage down")
}
func (failingStore) DeleteOverrides(context.Context, string) error {
	return errors.New("storage down")
}

func TestResolveFailsOpenOnStoreError(t *testing.T) {
	r := NewResolver(failingStore{}, Defaults())

	eff := r.Resolve(context.Background(), "shopfront", "contact")
	assert.Equal(t, int64(2000), eff.Int64(KeyTimerMinMS), "defaults survive a broken store")
	assert.True(t, eff.Bool(KeyTimerEnabled))
}

func TestResolveReturnsClone(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	eff := r.Resolve(ctx, "", "")
	eff[KeyTimerMinMS] = int64(1)

	again := r.Resolve(ctx, "", "")
	assert.Equal(t, int64(2000), again.Int64(KeyTimerMinMS), "callers must not mutate shared defaults")
}

func TestEffectiveAccessorsNormalizeJSONTypes(t *testing.T) {
	eff := Effective{
		"a_bool":   "true",
		"a_number": float64(42),
		"a_list":   []any{"x", "y", 3},
	}

	assert.True(t, eff.Bool("a_bool"))
	assert.Equal(t, int64(42), eff.Int64("a_number"))
	assert.Equal(t, []string{"x", "y"}, eff.StrList("a_list"))
	assert.Equal(t, "", eff.Str("missing"))
}
