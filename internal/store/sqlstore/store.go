// Package sqlstore implements store.Store on an embedded SQLite database.
//
// The pool holds a single connection, so transactions are serialized by
// database/sql itself and read-check-write sequences are isolated.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrMoose/rescue/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed coordination store.
type Store struct {
	db     *sql.DB
	now    func() time.Time
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the database file at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlstore: %q: %w", p, err)
		}
	}
	return nil
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
	if s.closed.Load() {
		return store.ErrClosed
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	tx := &txn{ctx: ctx, tx: sqlTx, nowMs: s.now().UnixMilli(), readOnly: readOnly}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if readOnly {
		return sqlTx.Rollback()
	}
	return sqlTx.Commit()
}

// Sweep deletes up to max expired keys. max <= 0 means no limit.
func (s *Store) Sweep(ctx context.Context, max int) (int, error) {
	if s.closed.Load() {
		return 0, store.ErrClosed
	}
	if max <= 0 {
		max = -1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE rowid IN (
			SELECT rowid FROM kv WHERE expires_ms > 0 AND expires_ms <= ? LIMIT ?)`,
		s.now().UnixMilli(), max)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

type txn struct {
	ctx      context.Context
	tx       *sql.Tx
	nowMs    int64
	readOnly bool
}

func (t *txn) write() error {
	if t.readOnly {
		return store.ErrReadOnly
	}
	return nil
}

func (t *txn) Get(key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT v FROM kv WHERE k = ? AND (expires_ms = 0 OR expires_ms > ?)`, key, t.nowMs).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return v, err
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
	var exp int64
	if ttl > 0 {
		exp = t.nowMs + ttl.Milliseconds()
	}
	if value == nil {
		value = []byte{}
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO kv (k, v, expires_ms) VALUES (?, ?, ?)
		 ON CONFLICT (k) DO UPDATE SET v = excluded.v, expires_ms = excluded.expires_ms`,
		key, value, exp)
	return err
}

func (t *txn) Del(key string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	live, err := t.Exists(key)
	if err != nil {
		return false, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM kv WHERE k = ?`, key); err != nil {
		return false, err
	}
	return live, nil
}

func (t *txn) CountPrefix(prefix string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COUNT(*) FROM kv
		 WHERE substr(k, 1, ?) = ? AND (expires_ms = 0 OR expires_ms > ?)`,
		len(prefix), prefix, t.nowMs).Scan(&n)
	return n, err
}

func (t *txn) HGet(hash, field string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT v FROM hashes WHERE h = ? AND f = ?`, hash, field).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return v, err
}

func (t *txn) HExists(hash, field string) (bool, error) {
	_, err := t.HGet(hash, field)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (t *txn) HSet(hash, field string, value []byte) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	had, err := t.HExists(hash, field)
	if err != nil {
		return false, err
	}
	if value == nil {
		value = []byte{}
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO hashes (h, f, v) VALUES (?, ?, ?)
		 ON CONFLICT (h, f) DO UPDATE SET v = excluded.v`, hash, field, value)
	return err == nil && !had, err
}

func (t *txn) HLen(hash string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM hashes WHERE h = ?`, hash).Scan(&n)
	return n, err
}

func (t *txn) SAdd(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	res, err := t.tx.ExecContext(t.ctx, `INSERT OR IGNORE INTO sets (s, m) VALUES (?, ?)`, set, member)
	return affected(res, err)
}

func (t *txn) SRem(set, member string) (bool, error) {
	if err := t.write(); err != nil {
		return false, err
	}
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM sets WHERE s = ? AND m = ?`, set, member)
	return affected(res, err)
}

func (t *txn) SIsMember(set, member string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(t.ctx, `SELECT 1 FROM sets WHERE s = ? AND m = ?`, set, member).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (t *txn) SCard(set string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM sets WHERE s = ?`, set).Scan(&n)
	return n, err
}

func (t *txn) SScan(set, cursor string, count int) ([]string, string, error) {
	if count <= 0 {
		count = 10
	}
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT m FROM sets WHERE s = ? AND m > ? ORDER BY m LIMIT ?`, set, cursor, count+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var page []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, "", err
		}
		page = append(page, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(page) <= count {
		return page, "", nil
	}
	page = page[:count]
	return page, page[count-1], nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
