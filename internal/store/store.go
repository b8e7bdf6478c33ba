// Package store defines the coordination store capability surface used by
// the work queue: single keys with optional expiry, hash maps and sets, all
// mutated inside atomic read-check-write transactions.
//
// Engines live in subpackages: memstore (in-process), pebblekv (durable,
// Pebble) and sqlstore (durable, SQLite).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for missing or expired keys and fields.
	ErrNotFound = errors.New("store: not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
	// ErrReadOnly is returned by writes inside a View transaction.
	ErrReadOnly = errors.New("store: write in read-only transaction")
)

// Txn is the view of the store inside one transaction. A Txn must not be
// retained after its function returns.
type Txn interface {
	// Get returns the value of a single key.
	Get(key string) ([]byte, error)
	Exists(key string) (bool, error)
	// SetEX writes key with a time-to-live. ttl <= 0 stores without expiry.
	SetEX(key string, value []byte, ttl time.Duration) error
	Del(key string) (bool, error)
	// CountPrefix counts live single keys starting with prefix.
	CountPrefix(prefix string) (int, error)

	HGet(hash, field string) ([]byte, error)
	HExists(hash, field string) (bool, error)
	// HSet reports whether the field was newly created.
	HSet(hash, field string, value []byte) (bool, error)
	HLen(hash string) (int, error)

	SAdd(set, member string) (bool, error)
	SRem(set, member string) (bool, error)
	SIsMember(set, member string) (bool, error)
	SCard(set string) (int, error)
	// SScan returns up to count members strictly greater than cursor in
	// byte order. next is the cursor for the following call and is empty
	// once the end of the set has been reached.
	SScan(set, cursor string, count int) (members []string, next string, err error)
}

// Store runs transactions. Update transactions are atomic and isolated from
// each other: if fn returns an error nothing it wrote is visible.
type Store interface {
	Update(ctx context.Context, fn func(Txn) error) error
	View(ctx context.Context, fn func(Txn) error) error
	Close() error
}

// Sweeper is implemented by engines that reclaim expired keys in the
// background rather than only on access.
type Sweeper interface {
	Sweep(ctx context.Context, max int) (int, error)
}

// Members collects every member of set through repeated SScan calls.
func Members(tx Txn, set string, batch int) ([]string, error) {
	if batch <= 0 {
		batch = 256
	}
	var out []string
	cursor := ""
	for {
		ms, next, err := tx.SScan(set, cursor, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
		if next == "" {
			return out, nil
		}
		cursor = next
	}
}
