package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrMoose/rescue/internal/store"
	"github.com/MrMoose/rescue/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T, clock *storetest.Clock) store.Store {
		s := New(WithClock(clock.Now))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestClosed(t *testing.T) {
	s := New()
	_ = s.Close()
	err := s.Update(context.Background(), func(store.Txn) error { return nil })
	if !errors.Is(err, store.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.View(ctx, func(store.Txn) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled context: err=%v called=%v", err, called)
	}
}
