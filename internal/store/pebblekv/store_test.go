package pebblekv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/store"
	"github.com/MrMoose/rescue/internal/store/storetest"
)

func openTest(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), pebblestore.FsyncModeNever, Options{Now: now})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) store.Store {
		return openTest(t, clock.Now)
	})
}

func TestReopenKeepsState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(dir, pebblestore.FsyncModeAlways, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		if _, err := tx.SAdd("candidates", "d1"); err != nil {
			return err
		}
		_, err := tx.HSet("passwords", "d1", []byte("x"))
		return err
	}))
	require.NoError(t, s.Close())

	s, err = Open(dir, pebblestore.FsyncModeAlways, Options{})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		n, err := tx.SCard("candidates")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		n, err = tx.HLen("passwords")
		require.NoError(t, err)
		require.Equal(t, 1, n)
		return nil
	}))
}

func TestSweepSkipsRewrittenDeadline(t *testing.T) {
	clock := storetest.NewClock()
	s := openTest(t, clock.Now)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		return tx.SetEX("lease/a", []byte("1"), time.Second)
	}))
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		return tx.SetEX("lease/a", []byte("2"), time.Hour)
	}))
	clock.Advance(time.Minute)
	n, err := s.Sweep(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, s.View(ctx, func(tx store.Txn) error {
		v, err := tx.Get("lease/a")
		require.NoError(t, err)
		require.Equal(t, "2", string(v))
		return nil
	}))
}

func TestSweepLimit(t *testing.T) {
	clock := storetest.NewClock()
	s := openTest(t, clock.Now)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		for _, k := range []string{"a", "b", "c"} {
			if err := tx.SetEX(k, []byte(k), time.Millisecond); err != nil {
				return err
			}
		}
		return nil
	}))
	clock.Advance(time.Second)
	n, err := s.Sweep(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = s.Sweep(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBackgroundSweeper(t *testing.T) {
	s := openTest(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx store.Txn) error {
		return tx.SetEX("k", []byte("v"), time.Millisecond)
	}))
	s.StartSweeper(10*time.Millisecond, 0)
	s.StartSweeper(10*time.Millisecond, 0)
	require.Eventually(t, func() bool {
		var found bool
		_ = s.View(ctx, func(tx store.Txn) error {
			_, ok, err := tx.(*txn).get(kvKey("k"))
			found = ok || err != nil
			return nil
		})
		return !found
	}, 2*time.Second, 10*time.Millisecond)
	s.StopSweeper()
	s.StopSweeper()
}
