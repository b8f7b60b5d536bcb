// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound indicates no override record exists for the given key.
var ErrNotFound = errors.New("override record not found")

// OverrideRecord is one stored layer of overrides. Enabled gates the
// whole record: a disabled record is kept in storage for the editor UI
// but never participates in resolution.
type OverrideRecord struct {
	Enabled bool           `json:"enabled"`
	Values  map[string]any `json:"values"`
}

// Store persists override records keyed by layer key: the integration
// ID for layer 2, "integration:form" for layer 3.
type Store interface {
	GetOverrides(ctx context.Context, key string) (*OverrideRecord, error)
	PutOverrides(ctx context.Context, key string, rec *OverrideRecord) error
	DeleteOverrides(ctx context.Context, key string) error
}

const overrideKeyPrefix = "override:"

// BadgerStore implements Store on BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore creates a BadgerDB-backed override store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// GetOverrides retrieves an override record.
func (s *BadgerStore) GetOverrides(ctx context.Context, key string) (*OverrideRecord, error) {
	var rec OverrideRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(overrideKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get overrides: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutOverrides stores an override record.
func (s *BadgerStore) PutOverrides(ctx context.Context, key string, rec *OverrideRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(overrideKeyPrefix+key), data); err != nil {
			return fmt.Errorf("put overrides: %w", err)
		}
		return nil
	})
}

// DeleteOverrides removes an override record. Deleting a missing
// record is a no-op.
func (s *BadgerStore) DeleteOverrides(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(overrideKeyPrefix + key))
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete overrides: %w", err)
		}
		return nil
	})
}
