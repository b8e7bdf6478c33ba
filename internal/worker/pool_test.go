package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrMoose/rescue/internal/store/memstore"
	"github.com/MrMoose/rescue/internal/verify"
	"github.com/MrMoose/rescue/internal/workqueue"
)

func newQueue(t *testing.T, candidates ...string) *workqueue.Queue {
	t.Helper()
	q := workqueue.New(memstore.New(), "test", workqueue.Options{})
	for _, c := range candidates {
		_, err := q.Insert(context.Background(), c)
		require.NoError(t, err)
	}
	return q
}

func matchOnly(secret string) verify.Verifier {
	return verify.Func(func(_ context.Context, _ *verify.Resource, c string) (bool, error) {
		return c == secret, nil
	})
}

func fastOptions() Options {
	return Options{Size: 4, PollInterval: time.Millisecond, PollTimeout: time.Second, IdleExit: 20}
}

func TestPoolFindsWinner(t *testing.T) {
	var cands []string
	for i := 0; i < 50; i++ {
		cands = append(cands, fmt.Sprintf("cand-%02d", i))
	}
	q := newQueue(t, cands...)
	p := New(q, matchOnly("cand-37"), nil, fastOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := p.Run(ctx)
	require.True(t, res.Found)
	require.Equal(t, "cand-37", res.Winner)
	require.GreaterOrEqual(t, res.Attempts, int64(1))

	solved, err := q.Solved(ctx)
	require.NoError(t, err)
	require.True(t, solved)
	winners, err := q.Winners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"cand-37"}, winners)
	require.Len(t, p.Stats(), 4)
}

func TestPoolDrainsWithoutWinner(t *testing.T) {
	q := newQueue(t, "abc", "ABC", "aBc")
	p := New(q, matchOnly("nope"), nil, fastOptions())
	res := p.Run(context.Background())
	require.False(t, res.Found)
	require.Equal(t, int64(3), res.Attempts)

	s, err := q.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, workqueue.Stats{Candidates: 3, Failed: 3}, s)
}

func TestPoolStopsWhenSolvedElsewhere(t *testing.T) {
	q := newQueue(t, "winner")
	ctx := context.Background()
	r, err := q.Poll(ctx, "other")
	require.NoError(t, err)
	_, err = q.Return(ctx, r.Candidate, true)
	require.NoError(t, err)

	opts := fastOptions()
	opts.IdleExit = 0
	p := New(q, matchOnly("never"), nil, opts)
	done := make(chan Result, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case res := <-done:
		require.False(t, res.Found)
		require.Zero(t, res.Attempts)
	case <-time.After(5 * time.Second):
		p.Stop()
		t.Fatal("pool did not notice the solved queue")
	}
}

func TestVerifierErrorLeavesLease(t *testing.T) {
	q := newQueue(t, "flaky")
	var calls atomic.Int32
	v := verify.Func(func(context.Context, *verify.Resource, string) (bool, error) {
		calls.Add(1)
		return false, errors.New("device busy")
	})
	opts := fastOptions()
	opts.Size = 1
	opts.IdleExit = 3
	res := New(q, v, nil, opts).Run(context.Background())
	require.False(t, res.Found)
	require.Equal(t, int32(1), calls.Load())

	s, err := q.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, s.Pending)
	require.Equal(t, 1, s.Leased)
	require.Zero(t, s.Failed)
}

// flakyBackend fails every other poll with a store error.
type flakyBackend struct {
	workqueue.Backend
	n atomic.Int32
}

func (f *flakyBackend) Poll(ctx context.Context, hint string) (workqueue.PollResult, error) {
	if f.n.Add(1)%2 == 1 {
		return workqueue.PollResult{}, fmt.Errorf("poll: %w", workqueue.ErrStoreUnavailable)
	}
	return f.Backend.Poll(ctx, hint)
}

func TestStoreErrorsDoNotStopWorkers(t *testing.T) {
	q := &flakyBackend{Backend: newQueue(t, "a", "b", "c")}
	opts := fastOptions()
	opts.Size = 1
	p := New(q, matchOnly("c"), nil, opts)
	res := p.Run(context.Background())
	require.True(t, res.Found)
	require.Equal(t, "c", res.Winner)
	for _, st := range p.Stats() {
		require.Positive(t, st.Errors)
	}
}

func TestRunHonoursContext(t *testing.T) {
	q := newQueue(t)
	opts := fastOptions()
	opts.IdleExit = 0
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := New(q, matchOnly("x"), nil, opts).Run(ctx)
	require.False(t, res.Found)
}

// stallingBackend blocks Solved and Return until the call's context ends.
type stallingBackend struct {
	workqueue.Backend
	solvedCalls atomic.Int32
	returnCalls atomic.Int32
}

func (s *stallingBackend) Solved(ctx context.Context) (bool, error) {
	s.solvedCalls.Add(1)
	<-ctx.Done()
	return false, ctx.Err()
}

func (s *stallingBackend) Return(ctx context.Context, _ string, _ bool) (workqueue.ReturnResult, error) {
	s.returnCalls.Add(1)
	<-ctx.Done()
	return workqueue.ReturnOK, ctx.Err()
}

func TestStalledSolvedDoesNotBlockStop(t *testing.T) {
	b := &stallingBackend{Backend: newQueue(t)}
	opts := fastOptions()
	opts.Size = 1
	opts.IdleExit = 0
	opts.PollTimeout = 20 * time.Millisecond
	p := New(b, matchOnly("never"), nil, opts)

	done := make(chan Result, 1)
	go func() { done <- p.Run(context.Background()) }()
	time.Sleep(200 * time.Millisecond)
	p.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker still blocked in Solved after Stop")
	}
	require.GreaterOrEqual(t, b.solvedCalls.Load(), int32(2))
}

func TestStalledReturnIsBounded(t *testing.T) {
	b := &stallingBackend{Backend: newQueue(t, "secret")}
	opts := fastOptions()
	opts.Size = 1
	opts.PollTimeout = 20 * time.Millisecond
	p := New(b, matchOnly("secret"), nil, opts)

	done := make(chan Result, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case res := <-done:
		require.True(t, res.Found)
		require.Equal(t, "secret", res.Winner)
	case <-time.After(2 * time.Second):
		p.Stop()
		t.Fatal("worker blocked in Return")
	}
	require.Equal(t, int32(returnAttempts), b.returnCalls.Load())
}
