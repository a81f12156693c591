package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluej-social/bluej/store"
)

// flakyExecer fails the first failures calls and records every attempt.
type flakyExecer struct {
	failures int
	calls    []store.MutationName
}

func (f *flakyExecer) Exec(ctx context.Context, m store.Mutation) error {
	f.calls = append(f.calls, m.Name)
	if f.failures != 0 {
		if f.failures > 0 {
			f.failures--
		}
		return errors.New("store unavailable")
	}
	return nil
}

func newTestQueue(st Execer, budget int, retryable func(error) bool) *Queue {
	return New(&Args{
		Store:     st,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Budget:    budget,
		Interval:  time.Hour,
		Retryable: retryable,
	})
}

func TestQueueImmediateSuccess(t *testing.T) {
	st := &flakyExecer{}
	q := newTestQueue(st, 3, nil)

	q.Submit(context.Background(), store.Mutation{Name: store.MutCreatePost})

	require.Len(t, st.calls, 1)
	require.Equal(t, 0, q.Depth())
}

func TestQueueRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	st := &flakyExecer{failures: 2}
	q := newTestQueue(st, 3, nil)

	q.Submit(ctx, store.Mutation{Name: store.MutCreatePost})
	require.Len(t, st.calls, 1)
	require.Equal(t, 1, q.Depth())

	q.Drain(ctx)
	require.Len(t, st.calls, 2)
	require.Equal(t, 1, q.Depth())

	q.Drain(ctx)
	require.Len(t, st.calls, 3)
	require.Equal(t, 0, q.Depth())
}

func TestQueueExhaustsBudgetAndDrops(t *testing.T) {
	ctx := context.Background()
	st := &flakyExecer{failures: -1} // never recovers
	q := newTestQueue(st, 3, nil)

	q.Submit(ctx, store.Mutation{Name: store.MutMergeFollow})
	for i := 0; i < 10; i++ {
		q.Drain(ctx)
	}

	// One initial attempt plus three retries, then the mutation is gone.
	require.Len(t, st.calls, 4)
	require.Equal(t, 0, q.Depth())
}

func TestQueueNonRetryableDropsImmediately(t *testing.T) {
	st := &flakyExecer{failures: -1}
	q := newTestQueue(st, 3, func(error) bool { return false })

	q.Submit(context.Background(), store.Mutation{Name: store.MutDeletePost})

	require.Len(t, st.calls, 1)
	require.Equal(t, 0, q.Depth())
}

func TestQueueDrainPreservesOrder(t *testing.T) {
	ctx := context.Background()
	st := &flakyExecer{failures: 2}
	q := newTestQueue(st, 5, nil)

	q.Submit(ctx, store.Mutation{Name: store.MutCreatePost})
	q.Submit(ctx, store.Mutation{Name: store.MutMergeRootEdge})
	require.Equal(t, 2, q.Depth())

	q.Drain(ctx)
	require.Equal(t, []store.MutationName{
		store.MutCreatePost,
		store.MutMergeRootEdge,
		store.MutCreatePost,
		store.MutMergeRootEdge,
	}, st.calls)
	require.Equal(t, 0, q.Depth())
}

func TestQueueDefaults(t *testing.T) {
	q := New(&Args{Store: &flakyExecer{}})
	require.Equal(t, DefaultRetryBudget, q.budget)
	require.Equal(t, DefaultDrainInterval, q.interval)
	require.True(t, q.retryable(errors.New("anything")))
}
