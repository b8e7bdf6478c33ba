// Package storetest is a conformance suite run against every store engine.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrMoose/rescue/internal/store"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.UnixMilli(1_700_000_000_000)}
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory opens a fresh, empty store whose expiry decisions use clock.
type Factory func(t *testing.T, clock *Clock) store.Store

var errAbort = errors.New("abort")

// Run executes the suite.
func Run(t *testing.T, open Factory) {
	t.Run("keys", func(t *testing.T) { testKeys(t, open) })
	t.Run("expiry", func(t *testing.T) { testExpiry(t, open) })
	t.Run("hashes", func(t *testing.T) { testHashes(t, open) })
	t.Run("sets", func(t *testing.T) { testSets(t, open) })
	t.Run("scan", func(t *testing.T) { testScan(t, open) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, open) })
	t.Run("readonly", func(t *testing.T) { testReadOnly(t, open) })
	t.Run("concurrent", func(t *testing.T) { testConcurrent(t, open) })
}

func testKeys(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		_, err := tx.Get("a")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, tx.SetEX("a", []byte("1"), 0))
		require.NoError(t, tx.SetEX("lease/x", []byte("x"), 0))
		v, err := tx.Get("a")
		require.NoError(t, err)
		require.Equal(t, "1", string(v))
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		ok, err := tx.Exists("a")
		require.NoError(t, err)
		require.True(t, ok)
		n, err := tx.CountPrefix("lease/")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	}))
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		ok, err := tx.Del("a")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tx.Del("a")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func testExpiry(t *testing.T, open Factory) {
	clock := NewClock()
	s := open(t, clock)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		require.NoError(t, tx.SetEX("lease/1", []byte("v"), time.Minute))
		return tx.SetEX("lease/2", []byte("v"), 2*time.Minute)
	}))
	clock.Advance(time.Minute)
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		ok, err := tx.Exists("lease/1")
		require.NoError(t, err)
		require.False(t, ok, "key must be gone at its deadline")
		_, err = tx.Get("lease/1")
		require.ErrorIs(t, err, store.ErrNotFound)
		n, err := tx.CountPrefix("lease/")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	}))
	if sw, ok := s.(store.Sweeper); ok {
		n, err := sw.Sweep(ctx, 0)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	// a rewritten key takes the new deadline
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		return tx.SetEX("lease/2", []byte("w"), 10*time.Minute)
	}))
	clock.Advance(5 * time.Minute)
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		v, err := tx.Get("lease/2")
		require.NoError(t, err)
		require.Equal(t, "w", string(v))
		return nil
	}))
}

func testHashes(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		created, err := tx.HSet("pw", "d1", []byte("x"))
		require.NoError(t, err)
		require.True(t, created)
		created, err = tx.HSet("pw", "d1", []byte("y"))
		require.NoError(t, err)
		require.False(t, created)
		_, err = tx.HSet("pw", "d2", []byte("z"))
		return err
	}))
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		v, err := tx.HGet("pw", "d1")
		require.NoError(t, err)
		require.Equal(t, "y", string(v))
		_, err = tx.HGet("pw", "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
		ok, err := tx.HExists("pw", "d2")
		require.NoError(t, err)
		require.True(t, ok)
		n, err := tx.HLen("pw")
		require.NoError(t, err)
		require.Equal(t, 2, n)
		n, err = tx.HLen("other")
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	}))
}

func testSets(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		added, err := tx.SAdd("pending", "a")
		require.NoError(t, err)
		require.True(t, added)
		added, err = tx.SAdd("pending", "a")
		require.NoError(t, err)
		require.False(t, added)
		_, err = tx.SAdd("pending", "b")
		require.NoError(t, err)
		removed, err := tx.SRem("pending", "a")
		require.NoError(t, err)
		require.True(t, removed)
		removed, err = tx.SRem("pending", "a")
		require.NoError(t, err)
		require.False(t, removed)
		return nil
	}))
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		ok, err := tx.SIsMember("pending", "b")
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = tx.SIsMember("pending", "a")
		require.NoError(t, err)
		require.False(t, ok)
		n, err := tx.SCard("pending")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	}))
}

func testScan(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	want := make([]string, 0, 25)
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		for i := 24; i >= 0; i-- {
			m := fmt.Sprintf("m%02d", i)
			if _, err := tx.SAdd("s", m); err != nil {
				return err
			}
		}
		return nil
	}))
	for i := 0; i < 25; i++ {
		want = append(want, fmt.Sprintf("m%02d", i))
	}
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		all, err := store.Members(tx, "s", 7)
		require.NoError(t, err)
		require.Equal(t, want, all)

		page, next, err := tx.SScan("s", "m19", 100)
		require.NoError(t, err)
		require.Equal(t, want[20:], page)
		require.Empty(t, next)

		page, next, err = tx.SScan("s", "", 3)
		require.NoError(t, err)
		require.Equal(t, want[:3], page)
		require.Equal(t, "m02", next)

		page, _, err = tx.SScan("missing", "", 3)
		require.NoError(t, err)
		require.Empty(t, page)
		return nil
	}))
}

func testRollback(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		_, err := tx.SAdd("s", "keep")
		return err
	}))
	err := s.Update(ctx, func(tx store.Txn) error {
		_, _ = tx.SAdd("s", "drop")
		_, _ = tx.SRem("s", "keep")
		_, _ = tx.HSet("h", "f", []byte("v"))
		_ = tx.SetEX("k", []byte("v"), time.Minute)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		all, err := store.Members(tx, "s", 0)
		require.NoError(t, err)
		require.Equal(t, []string{"keep"}, all)
		ok, err := tx.HExists("h", "f")
		require.NoError(t, err)
		require.False(t, ok)
		ok, err = tx.Exists("k")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func testReadOnly(t *testing.T, open Factory) {
	s := open(t, NewClock())
	err := s.View(context.Background(), func(tx store.Txn) error {
		_, err := tx.SAdd("s", "x")
		return err
	})
	require.ErrorIs(t, err, store.ErrReadOnly)
}

// testConcurrent checks isolation of read-check-write transactions: every
// goroutine tries to claim the same key, exactly one succeeds.
func testConcurrent(t *testing.T, open Factory) {
	s := open(t, NewClock())
	ctx := context.Background()
	const workers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := s.Update(ctx, func(tx store.Txn) error {
				ok, err := tx.Exists("claim")
				if err != nil || ok {
					return err
				}
				if err := tx.SetEX("claim", []byte(fmt.Sprint(id)), time.Minute); err != nil {
					return err
				}
				mu.Lock()
				won++
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, won)
}
