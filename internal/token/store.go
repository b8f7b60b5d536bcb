// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

// Package token implements the anti-replay timer store. A token is
// issued when a form is rendered, bound to its issue timestamp, and is
// valid for exactly one validation attempt. The same store backs both
// the minimum-elapsed-time check and the duplicate-submission guard:
// both need the same "was this issued by us, and how long ago" fact.
package token

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"

	"github.com/formwarden/formwarden/internal/logging"
	"github.com/formwarden/formwarden/internal/telemetry"
)

// ErrNotFound indicates the token does not exist: never issued,
// expired, swept, or already consumed.
var ErrNotFound = errors.New("token not found")

// MaxAge is how long an unconsumed token survives before the sweep
// removes it.
const MaxAge = 24 * time.Hour

// Token is an issued anti-replay record.
type Token struct {
	Hash       string `json:"hash"`
	IssuedAtMS int64  `json:"issued_at_ms"`
	OwnerIP    string `json:"owner_ip"`
}

// Age returns how long ago the token was issued.
func (t *Token) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(t.IssuedAtMS))
}

const tokenKeyPrefix = "token:"

// Store issues and consumes single-use tokens backed by BadgerDB.
type Store struct {
	db     *badger.DB
	secret []byte

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates a token store. The secret keys the token hash
// derivation; pass an empty slice to generate a random per-process key
// (tokens then do not validate across replicas or restarts).
func NewStore(db *badger.DB, secret []byte) (*Store, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return &Store{db: db, secret: secret, now: time.Now}, nil
}

// SetClock overrides the store's time source. Test use only.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Issue generates an unpredictable token for the given client IP,
// persists it and returns its hash for embedding in the outbound form.
func (s *Store) Issue(ctx context.Context, ownerIP string) (string, error) {
	hash, err := s.deriveHash(ownerIP)
	if err != nil {
		return "", err
	}

	tok := Token{
		Hash:       hash,
		IssuedAtMS: s.now().UnixMilli(),
		OwnerIP:    ownerIP,
	}
	data, err := json.Marshal(&tok)
	if err != nil {
		return "", fmt.Errorf("marshal token: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tokenKeyPrefix+hash), data)
	})
	if err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	telemetry.TokensIssued.Inc()
	return hash, nil
}

// deriveHash produces a keyed blake2b digest of a random nonce, the
// issue timestamp and the owner IP. The key makes hashes unforgeable
// even if the derivation inputs are guessed.
func (s *Store) deriveHash(ownerIP string) (string, error) {
	h, err := blake2b.New256(s.secret)
	if err != nil {
		return "", fmt.Errorf("init token hash: %w", err)
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("token nonce: %w", err)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(s.now().UnixNano()))

	h.Write(nonce)
	h.Write(ts[:])
	h.Write([]byte(ownerIP))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a token by hash, or ErrNotFound.
func (s *Store) Get(ctx context.Context, hash string) (*Token, error) {
	var tok Token

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKeyPrefix + hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tok)
		})
	})
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// Consume deletes the token, making it unusable for further attempts.
// It reports whether this call observed the token; with two concurrent
// consumes of the same hash, at most one sees found=true. Consuming an
// already-gone token is a no-op, not an error.
func (s *Store) Consume(ctx context.Context, hash string) (bool, error) {
	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(tokenKeyPrefix + hash)
		_, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Sweep bulk-deletes tokens issued before the cutoff and returns how
// many were removed. Called by the periodic background job, not per
// request.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	cutoffMS := olderThan.UnixMilli()
	var stale []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(tokenKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var tok Token
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tok)
			})
			if err != nil {
				continue
			}
			if tok.IssuedAtMS < cutoffMS {
				stale = append(stale, tok.Hash)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan tokens: %w", err)
	}

	count := 0
	for _, hash := range stale {
		found, err := s.Consume(ctx, hash)
		if err != nil {
			continue
		}
		if found {
			count++
		}
	}
	return count, nil
}

// StartSweepLoop runs Sweep on the given interval until the context is
// canceled. Tokens older than MaxAge are removed.
func (s *Store) StartSweepLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(ctx, s.now().Add(-MaxAge))
				if err != nil {
					logging.Error().Err(err).Msg("token sweep failed")
					continue
				}
				if n > 0 {
					logging.Debug().Int("removed", n).Msg("token sweep completed")
				}
			}
		}
	}()
}
