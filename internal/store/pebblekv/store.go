// Package pebblekv implements store.Store on top of the Pebble wrapper.
//
// Writers are serialized and run inside an indexed batch, so a transaction
// reads its own writes and commits atomically. Readers use a snapshot.
// Expiring keys are tracked in a deadline-ordered index which Sweep walks.
package pebblekv

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/store"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// compactAfter is the sweep size above which a compaction of the expiry
// index is requested.
const compactAfter = 4096

// Options configures a Store.
type Options struct {
	// Now overrides time.Now for expiry decisions.
	Now func() time.Time
	// Logger receives sweeper diagnostics. Defaults to a no-op logger.
	Logger logpkg.Logger
	// OwnsDB closes the underlying database on Close.
	OwnsDB bool
}

// Store is a Pebble-backed coordination store.
type Store struct {
	db     *pebblestore.DB
	now    func() time.Time
	logger logpkg.Logger
	ownsDB bool

	mu     sync.RWMutex
	closed bool

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// New layers a store over an open database.
func New(db *pebblestore.DB, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	return &Store{
		db:     db,
		now:    opts.Now,
		logger: opts.Logger.With(logpkg.Component("pebblekv")),
		ownsDB: opts.OwnsDB,
	}
}

// Open opens a database at dir and returns a store that owns it.
func Open(dir string, fsync pebblestore.FsyncMode, opts Options) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: dir, Fsync: fsync})
	if err != nil {
		return nil, err
	}
	opts.OwnsDB = true
	return New(db, opts), nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	nowMs := s.now().UnixMilli()
	return s.db.Update(ctx, func(b *pebble.Batch) error {
		return fn(&txn{r: b, b: b, nowMs: nowMs})
	})
}

// View implements store.Store.
func (s *Store) View(ctx context.Context, fn func(store.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	nowMs := s.now().UnixMilli()
	return s.db.View(ctx, func(snap *pebble.Snapshot) error {
		return fn(&txn{r: snap, nowMs: nowMs})
	})
}

// Sweep deletes up to max keys whose deadline has passed. max <= 0 means
// no limit.
func (s *Store) Sweep(ctx context.Context, max int) (int, error) {
	var n int
	err := s.Update(ctx, func(st store.Txn) error {
		tx := st.(*txn)
		upper := ttlKey(tx.nowMs+1, "")
		it, err := tx.r.NewIter(&pebble.IterOptions{LowerBound: []byte(prefixTTL), UpperBound: upper})
		if err != nil {
			return err
		}
		defer it.Close()
		for ok := it.First(); ok; ok = it.Next() {
			if max > 0 && n >= max {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			idx := append([]byte(nil), it.Key()...)
			exp, key, valid := parseTTLKey(idx)
			if !valid {
				continue
			}
			raw, found, err := tx.get(kvKey(key))
			if err != nil {
				return err
			}
			// A rewritten key leaves its old index entry behind; only the
			// entry matching the stored deadline removes the value.
			if found {
				if cur, _, ok := decodeValue(raw); ok && cur == exp {
					if err := tx.b.Delete(kvKey(key), nil); err != nil {
						return err
					}
					n++
				}
			}
			if err := tx.b.Delete(idx, nil); err != nil {
				return err
			}
		}
		return it.Error()
	})
	if err != nil {
		return 0, err
	}
	if n >= compactAfter {
		if err := s.db.CompactRange([]byte(prefixTTL), prefixEnd([]byte(prefixTTL))); err != nil {
			s.logger.Warn("expiry index compaction failed", logpkg.Err(err))
		}
	}
	return n, nil
}

// StartSweeper runs Sweep in the background every interval with jitter.
// Calling it while a sweeper is running is a no-op.
func (s *Store) StartSweeper(interval time.Duration, maxPerTick int) {
	if interval <= 0 {
		interval = time.Second
	}
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	if s.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.sweepStop, s.sweepDone = stop, done
	go func() {
		defer close(done)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			jitter := time.Duration(rng.Int63n(int64(interval/10) + 1))
			select {
			case <-stop:
				return
			case <-time.After(interval + jitter):
				n, err := s.Sweep(context.Background(), maxPerTick)
				switch {
				case errors.Is(err, store.ErrClosed):
					return
				case err != nil:
					s.logger.Warn("sweep failed", logpkg.Err(err))
				case n > 0:
					s.logger.Debug("swept expired keys", logpkg.Int("count", n))
				}
			}
		}
	}()
}

// StopSweeper stops the background sweeper and waits for it to exit.
func (s *Store) StopSweeper() {
	s.sweepMu.Lock()
	stop, done := s.sweepStop, s.sweepDone
	s.sweepStop, s.sweepDone = nil, nil
	s.sweepMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Close stops the sweeper and rejects further transactions.
func (s *Store) Close() error {
	s.StopSweeper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// reader is the read surface shared by indexed batches and snapshots.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

type txn struct {
	r     reader
	b     *pebble.Batch // nil for read-only transactions
	nowMs int64
}

func (t *txn) write() error {
	if t.b == nil {
		return store.ErrReadOnly
	}
	return nil
}

func (t *txn) get(key []byte) ([]byte, bool, error) {
	v, closer, err := t.r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true, nil
}

func (t *txn) live(raw []byte) ([]byte, int64, bool) {
	exp, v, ok := decodeValue(raw)
	if !ok || (exp != 0 && t.nowMs >= exp) {
		return nil, exp, false
	}
	return v, exp, true
}

func (t *txn) Get(key string) ([]byte, error) {
	raw, found, err := t.get(kvKey(key))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.ErrNotFound
	}
	v, _, ok := t.live(raw)
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (t *txn) Exists(key string) (bool, error) {
	_, err := t.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *txn) SetEX(key string, value []byte, ttl time.Duration) error {
	if err := t.write(); err != nil {
		return err
	}
	raw, found, err := t.get(kvKey(key))
	if err != nil {
		return err
	}
	if found {
		if old, _, ok := decodeValue(raw); ok && old != 0 {
			if err := t.b.Delete(ttlKey(old, key), nil); err != nil {
				return err
			}
		}
	}
	var exp int64
	if ttl > 0 {
		exp = t.nowMs + ttl.Milliseconds()
		if err := t.b.Set(ttlKey(exp, key), nil, nil); err != nil {
			return err
		}
	}
	return t.b.Set(kvKey(key), encodeValue(exp, value), nil)
}

func (t *txn) Del(key string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	raw, found, err := t.get(kvKey(key))
	if err != nil || !found {
		return false, err
	}
	_, exp, live := t.live(raw)
	if exp != 0 {
		if err := t.b.Delete(ttlKey(exp, key), nil); err != nil {
			return false, err
		}
	}
	if err := t.b.Delete(kvKey(key), nil); err != nil {
		return false, err
	}
	return live, nil
}

func (t *txn) CountPrefix(prefix string) (int, error) {
	lower := kvKey(prefix)
	it, err := t.r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(lower)})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	n := 0
	for ok := it.First(); ok; ok = it.Next() {
		if _, _, live := t.live(it.Value()); live {
			n++
		}
	}
	return n, it.Error()
}

func (t *txn) HGet(hash, field string) ([]byte, error) {
	v, found, err := t.get(hashKey(hash, field))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (t *txn) HExists(hash, field string) (bool, error) {
	_, found, err := t.get(hashKey(hash, field))
	return found, err
}

func (t *txn) HSet(hash, field string, value []byte) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	k := hashKey(hash, field)
	_, found, err := t.get(k)
	if err != nil {
		return false, err
	}
	if err := t.b.Set(k, value, nil); err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	return true, t.bump(hashCountKey(hash), 1)
}

func (t *txn) HLen(hash string) (int, error) {
	return t.count(hashCountKey(hash))
}

func (t *txn) SAdd(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	k := setKey(set, member)
	_, found, err := t.get(k)
	if err != nil || found {
		return false, err
	}
	if err := t.b.Set(k, nil, nil); err != nil {
		return false, err
	}
	return true, t.bump(setCountKey(set), 1)
}

func (t *txn) SRem(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	k := setKey(set, member)
	_, found, err := t.get(k)
	if err != nil || !found {
		return false, err
	}
	if err := t.b.Delete(k, nil); err != nil {
		return false, err
	}
	return true, t.bump(setCountKey(set), -1)
}

func (t *txn) SIsMember(set, member string) (bool, error) {
	_, found, err := t.get(setKey(set, member))
	return found, err
}

func (t *txn) SCard(set string) (int, error) {
	return t.count(setCountKey(set))
}

func (t *txn) SScan(set, cursor string, count int) ([]string, string, error) {
	if count <= 0 {
		count = 10
	}
	prefix := setPrefix(set)
	lower := prefix
	if cursor != "" {
		// smallest key strictly after the cursor member
		lower = append(setKey(set, cursor), 0)
	}
	it, err := t.r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, "", err
	}
	defer it.Close()
	var page []string
	ok := it.First()
	for ; ok && len(page) < count; ok = it.Next() {
		page = append(page, string(it.Key()[len(prefix):]))
	}
	if err := it.Error(); err != nil {
		return nil, "", err
	}
	if !ok || len(page) == 0 {
		return page, "", nil
	}
	return page, page[len(page)-1], nil
}

func (t *txn) count(key []byte) (int, error) {
	raw, found, err := t.get(key)
	if err != nil || !found {
		return 0, err
	}
	return int(decodeCount(raw)), nil
}

func (t *txn) bump(key []byte, delta int) error {
	n, err := t.count(key)
	if err != nil {
		return err
	}
	n += delta
	if n <= 0 {
		return t.b.Delete(key, nil)
	}
	return t.b.Set(key, encodeCount(uint64(n)), nil)
}
