// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package telemetry

import (
	"context"
	"sync"

	"github.com/formwarden/formwarden/internal/logging"
)

// Buffer accumulates counter deltas for one request. Flush merges the
// buffer into the durable store exactly once; later Record or Flush
// calls on a flushed buffer are no-ops. Telemetry is best-effort, so
// Flush swallows storage errors after logging them.
type Buffer struct {
	store CounterStore

	mu      sync.Mutex
	deltas  map[string]int64
	flushed bool
}

// NewBuffer creates a per-request delta buffer over the given store.
func NewBuffer(store CounterStore) *Buffer {
	return &Buffer{
		store:  store,
		deltas: make(map[string]int64),
	}
}

// Record adds a delta to the named counter.
func (b *Buffer) Record(name string, delta int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.flushed {
		return
	}
	b.deltas[name] += delta
}

// Flush merges the buffered deltas into the durable store and marks
// the buffer spent. Safe to call more than once.
func (b *Buffer) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.flushed {
		b.mu.Unlock()
		return
	}
	b.flushed = true
	deltas := b.deltas
	b.deltas = nil
	b.mu.Unlock()

	if len(deltas) == 0 || b.store == nil {
		return
	}
	if err := b.store.Merge(ctx, deltas); err != nil {
		log := logging.Ctx(ctx)
		log.Warn().Err(err).Msg("telemetry flush failed")
	}
}

// Snapshot returns the pending deltas. Test use only.
func (b *Buffer) Snapshot() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int64, len(b.deltas))
	for k, v := range b.deltas {
		out[k] = v
	}
	return out
}
