// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package telemetry accumulates per-request counter deltas in memory
// and merges them into durable storage exactly once at request end.
// This bounds durable writes to one per request no matter how many
// validators fired. Counts are a monitoring signal, not a ledger:
// small lost updates under heavy concurrent merge are acceptable.
package telemetry

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Counter names shared across the pipeline. Per-validator spam counts
// are stored under the validator's own name.
const (
	CounterChecksTotal = "checks_total"
	CounterChecksSpam  = "checks_spam"
	CounterChecksClean = "checks_clean"
)

const counterKeyPrefix = "counter:"

// CounterStore persists named counters.
type CounterStore interface {
	// Merge applies a batch of deltas via read-modify-write.
	Merge(ctx context.Context, deltas map[string]int64) error

	// Get returns one counter's value; missing counters read as 0.
	Get(ctx context.Context, name string) (int64, error)

	// All returns every persisted counter.
	All(ctx context.Context) (map[string]int64, error)
}

// BadgerCounterStore implements CounterStore on BadgerDB. Values are
// stored as big-endian uint64 so keys stay scannable without JSON.
type BadgerCounterStore struct {
	db *badger.DB
}

// NewBadgerCounterStore creates a BadgerDB-backed counter store.
func NewBadgerCounterStore(db *badger.DB) *BadgerCounterStore {
	return &BadgerCounterStore{db: db}
}

// Merge applies all deltas inside one update transaction.
func (s *BadgerCounterStore) Merge(ctx context.Context, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	// Deterministic order keeps concurrent merges from deadlocking on
	// conflicting key ranges and makes failures reproducible.
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)

	return s.db.Update(func(txn *badger.Txn) error {
		for _, name := range names {
			key := []byte(counterKeyPrefix + name)

			var current int64
			item, err := txn.Get(key)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				current = 0
			case err != nil:
				return fmt.Errorf("read counter %s: %w", name, err)
			default:
				if err := item.Value(func(val []byte) error {
					current = decodeCounter(val)
					return nil
				}); err != nil {
					return fmt.Errorf("decode counter %s: %w", name, err)
				}
			}

			if err := txn.Set(key, encodeCounter(current+deltas[name])); err != nil {
				return fmt.Errorf("write counter %s: %w", name, err)
			}
		}
		return nil
	})
}

// Get returns one counter's value.
func (s *BadgerCounterStore) Get(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(counterKeyPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read counter %s: %w", name, err)
		}
		return item.Value(func(val []byte) error {
			value = decodeCounter(val)
			return nil
		})
	})
	return value, err
}

// All returns every persisted counter.
func (s *BadgerCounterStore) All(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(counterKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				out[name] = decodeCounter(val)
				return nil
			})
			if err != nil {
				return fmt.Errorf("decode counter %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func encodeCounter(v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

func decodeCounter(val []byte) int64 {
	if len(val) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(val))
}
