// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/formwarden/formwarden/internal/logging"
)

// Layer identifies which tier produced an effective value.
type Layer string

const (
	LayerGlobal      Layer = "global"
	LayerIntegration Layer = "integration"
	LayerForm        Layer = "form"
)

// Resolver merges global defaults with integration- and form-level
// override records. A storage read failure falls back to the layers
// already merged: configuration fails open, the security validators
// consuming it do not.
type Resolver struct {
	store    Store
	defaults Effective
}

// NewResolver creates a resolver over the given store. The defaults
// map must contain every recognized key; use Defaults() as the base and
// overlay deployment configuration before passing it in.
func NewResolver(store Store, defaults Effective) *Resolver {
	return &Resolver{store: store, defaults: defaults.Clone()}
}

// formKey builds the layer-3 record key.
func formKey(integrationID, formID string) string {
	return integrationID + ":" + formID
}

// Resolve produces the effective settings for a submission. formID may
// be empty, in which case only the global and integration layers apply.
func (r *Resolver) Resolve(ctx context.Context, integrationID, formID string) Effective {
	eff := r.defaults.Clone()
	if integrationID == "" {
		return eff
	}

	r.overlay(ctx, eff, integrationID, nil)
	if formID != "" {
		r.overlay(ctx, eff, formKey(integrationID, formID), nil)
	}
	return eff
}

// Sources reports which layer produced the value currently in effect
// for every key. Used by settings editors, not by evaluation.
func (r *Resolver) Sources(ctx context.Context, integrationID, formID string) map[string]Layer {
	sources := make(map[string]Layer, len(r.defaults))
	for key := range r.defaults {
		sources[key] = LayerGlobal
	}
	if integrationID == "" {
		return sources
	}

	eff := r.defaults.Clone()
	r.overlay(ctx, eff, integrationID, func(key string) { sources[key] = LayerIntegration })
	if formID != "" {
		r.overlay(ctx, eff, formKey(integrationID, formID), func(key string) { sources[key] = LayerForm })
	}
	return sources
}

// overlay applies one override record onto eff. Absent or disabled
// records contribute nothing; read errors are logged and skipped.
func (r *Resolver) overlay(ctx context.Context, eff Effective, key string, applied func(string)) {
	rec, err := r.store.GetOverrides(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Str("override_key", key).
			Msg("override read failed, falling back to lower layers")
		return
	}
	if !rec.Enabled {
		return
	}

	for k, v := range rec.Values {
		if !Overridable(k) {
			continue
		}
		eff[k] = v
		if applied != nil {
			applied(k)
		}
	}
}

// filterOverridable drops keys outside the allow-list.
func filterOverridable(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if Overridable(k) {
			out[k] = v
		}
	}
	return out
}

// SaveIntegrationOverrides stores layer-2 overrides for an integration.
// Unknown keys are dropped. A record with no surviving values and
// Enabled=false is deleted outright to keep storage sparse.
func (r *Resolver) SaveIntegrationOverrides(ctx context.Context, integrationID string, enabled bool, values map[string]any) error {
	if integrationID == "" {
		return fmt.Errorf("integration id is required")
	}
	return r.save(ctx, integrationID, enabled, values)
}

// SaveFormOverrides stores layer-3 overrides for a specific form.
func (r *Resolver) SaveFormOverrides(ctx context.Context, integrationID, formID string, enabled bool, values map[string]any) error {
	if integrationID == "" || formID == "" {
		return fmt.Errorf("integration id and form id are required")
	}
	return r.save(ctx, formKey(integrationID, formID), enabled, values)
}

func (r *Resolver) save(ctx context.Context, key string, enabled bool, values map[string]any) error {
	filtered := filterOverridable(values)
	if len(filtered) == 0 && !enabled {
		return r.store.DeleteOverrides(ctx, key)
	}
	return r.store.PutOverrides(ctx, key, &OverrideRecord{Enabled: enabled, Values: filtered})
}

// GetIntegrationOverrides returns the stored layer-2 record, or
// ErrNotFound when none exists.
func (r *Resolver) GetIntegrationOverrides(ctx context.Context, integrationID string) (*OverrideRecord, error) {
	return r.store.GetOverrides(ctx, integrationID)
}

// GetFormOverrides returns the stored layer-3 record, or ErrNotFound
// when none exists.
func (r *Resolver) GetFormOverrides(ctx context.Context, integrationID, formID string) (*OverrideRecord, error) {
	return r.store.GetOverrides(ctx, formKey(integrationID, formID))
}

// Defaults exposes the resolver's global layer (a copy).
func (r *Resolver) Defaults() Effective {
	return r.defaults.Clone()
}
