// FormWarden - Pluggable Spam Detection for Form Submissions
// Copyright 2026 The FormWarden Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/formwarden/formwarden

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounterStore(t *testing.T) *BadgerCounterStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerCounterStore(db)
}

func TestMergeAndGet(t *testing.T) {
	s := newTestCounterStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, map[string]int64{
		CounterChecksTotal: 3,
		CounterChecksSpam:  1,
	}))
	require.NoError(t, s.Merge(ctx, map[string]int64{
		CounterChecksTotal: 2,
		CounterChecksClean: 4,
	}))

	total, err := s.Get(ctx, CounterChecksTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	spam, err := s.Get(ctx, CounterChecksSpam)
	require.NoError(t, err)
	assert.Equal(t, int64(1), spam)

	missing, err := s.Get(ctx, "never_written")
	require.NoError(t, err)
	assert.Equal(t, int64(0), missing)
}

func TestMergeEmptyIsNoop(t *testing.T) {
	s := newTestCounterStore(t)
	require.NoError(t, s.Merge(context.Background(), nil))
}

func TestAll(t *testing.T) {
	s := newTestCounterStore(t)
	ctx := context.Background()

	require.NoError(t, s.Merge(ctx, map[string]int64{
		CounterChecksTotal: 10,
		"ip_blacklist":     2,
	}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		CounterChecksTotal: 10,
		"ip_blacklist":     2,
	}, all)
}

func TestBufferFlushesOnce(t *testing.T) {
	s := newTestCounterStore(t)
	ctx := context.Background()

	buf := NewBuffer(s)
	buf.Record(CounterChecksTotal, 1)
	buf.Record("timer", 1)
	buf.Record("timer", 1)

	assert.Equal(t, map[string]int64{CounterChecksTotal: 1, "timer": 2}, buf.Snapshot())

	buf.Flush(ctx)
	buf.Record("timer", 1) // ignored after flush
	buf.Flush(ctx)         // second flush is a no-op

	timer, err := s.Get(ctx, "timer")
	require.NoError(t, err)
	assert.Equal(t, int64(2), timer)

	total, err := s.Get(ctx, CounterChecksTotal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestBufferPerRequestAggregation(t *testing.T) {
	s := newTestCounterStore(t)
	ctx := context.Background()

	// N requests, M spam: checks_total rises by N, checks_spam by M.
	const n, m = 7, 3
	for i := 0; i < n; i++ {
		buf := NewBuffer(s)
		buf.Record(CounterChecksTotal, 1)
		if i < m {
			buf.Record(CounterChecksSpam, 1)
		} else {
			buf.Record(CounterChecksClean, 1)
		}
		buf.Flush(ctx)
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n), all[CounterChecksTotal])
	assert.Equal(t, int64(m), all[CounterChecksSpam])
	assert.Equal(t, int64(n-m), all[CounterChecksClean])
}

type erroringCounterStore struct{}

func (erroringCounterStore) Merge(context.Context, map[string]int64) error {
	return errors.New("merge failed")
}
func (erroringCounterStore) Get(context.Context, string) (int64, error) { return 0, nil }
func (erroringCounterStore) All(context.Context) (map[string]int64, error) {
	return nil, nil
}

func TestBufferFlushSwallowsStoreErrors(t *testing.T) {
	buf := NewBuffer(erroringCounterStore{})
	buf.Record(CounterChecksTotal, 1)
	buf.Flush(context.Background()) // must not panic or propagate
}

func TestBufferConcurrentRecord(t *testing.T) {
	buf := NewBuffer(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf.Record("concurrent", 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), buf.Snapshot()["concurrent"])
}
