// Package memstore is an in-process store.Store. Transactions are
// serialized by a single mutex and rolled back through an undo log.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrMoose/rescue/internal/store"
)

type entry struct {
	val []byte
	exp time.Time
}

// Store keeps everything in maps.
type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	kv     map[string]entry
	hashes map[string]map[string][]byte
	sets   map[string]map[string]struct{}
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		kv:     make(map[string]entry),
		hashes: make(map[string]map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	return s.run(ctx, false, fn)
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Txn) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	tx := &txn{s: s, now: s.now(), readOnly: readOnly}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// Sweep drops up to max expired keys.
func (s *Store) Sweep(ctx context.Context, max int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for k, e := range s.kv {
		if max > 0 && n >= max {
			break
		}
		if expired(e, now) {
			delete(s.kv, k)
			n++
		}
	}
	return n, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func expired(e entry, now time.Time) bool {
	return !e.exp.IsZero() && !now.Before(e.exp)
}

type txn struct {
	s        *Store
	now      time.Time
	readOnly bool
	undo     []func()
}

func (t *txn) write() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

func (t *txn) live(key string) (entry, bool) {
	e, ok := t.s.kv[key]
	if !ok || expired(e, t.now) {
		return entry{}, false
	}
	return e, true
}

func (t *txn) Get(key string) ([]byte, error) {
	e, ok := t.live(key)
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), e.val...), nil
}

func (t *txn) Exists(key string) (bool, error) {
	_, ok := t.live(key)
	return ok, nil
}

func (t *txn) SetEX(key string, value []byte, ttl time.Duration) error {
	if err := t.write(); err != nil {
		return err
	}
	prev, had := t.s.kv[key]
	e := entry{val: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = t.now.Add(ttl)
	}
	t.s.kv[key] = e
	t.undo = append(t.undo, func() {
		if had {
			t.s.kv[key] = prev
		} else {
			delete(t.s.kv, key)
		}
	})
	return nil
}

func (t *txn) Del(key string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	prev, ok := t.s.kv[key]
	if !ok {
		return false, nil
	}
	delete(t.s.kv, key)
	t.undo = append(t.undo, func() { t.s.kv[key] = prev })
	return !expired(prev, t.now), nil
}

func (t *txn) CountPrefix(prefix string) (int, error) {
	n := 0
	for k, e := range t.s.kv {
		if strings.HasPrefix(k, prefix) && !expired(e, t.now) {
			n++
		}
	}
	return n, nil
}

func (t *txn) HGet(hash, field string) ([]byte, error) {
	v, ok := t.s.hashes[hash][field]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *txn) HExists(hash, field string) (bool, error) {
	_, ok := t.s.hashes[hash][field]
	return ok, nil
}

func (t *txn) HSet(hash, field string, value []byte) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	h := t.s.hashes[hash]
	if h == nil {
		h = make(map[string][]byte)
		t.s.hashes[hash] = h
	}
	prev, had := h[field]
	h[field] = append([]byte(nil), value...)
	t.undo = append(t.undo, func() {
		if had {
			h[field] = prev
		} else {
			delete(h, field)
		}
	})
	return !had, nil
}

func (t *txn) HLen(hash string) (int, error) {
	return len(t.s.hashes[hash]), nil
}

func (t *txn) SAdd(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	m := t.s.sets[set]
	if m == nil {
		m = make(map[string]struct{})
		t.s.sets[set] = m
	}
	if _, ok := m[member]; ok {
		return false, nil
	}
	m[member] = struct{}{}
	t.undo = append(t.undo, func() { delete(m, member) })
	return true, nil
}

func (t *txn) SRem(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	m := t.s.sets[set]
	if _, ok := m[member]; !ok {
		return false, nil
	}
	delete(m, member)
	t.undo = append(t.undo, func() { m[member] = struct{}{} })
	return true, nil
}

func (t *txn) SIsMember(set, member string) (bool, error) {
	_, ok := t.s.sets[set][member]
	return ok, nil
}

func (t *txn) SCard(set string) (int, error) {
	return len(t.s.sets[set]), nil
}

func (t *txn) SScan(set, cursor string, count int) ([]string, string, error) {
	if count <= 0 {
		count = 10
	}
	var after []string
	for m := range t.s.sets[set] {
		if m > cursor {
			after = append(after, m)
		}
	}
	sort.Strings(after)
	if len(after) <= count {
		return after, "", nil
	}
	page := after[:count]
	return page, page[len(page)-1], nil
}
