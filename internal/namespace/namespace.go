package namespace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/MrMoose/rescue/internal/store"
)

// Meta holds namespace metadata and queue overrides.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
	LeaseTTLMs  int64  `json:"leaseTtlMs"`
	ScanBatch   int    `json:"scanBatch"`
}

// Defaults returns opinionated defaults for new namespaces.
func Defaults() Meta {
	return Meta{
		LeaseTTLMs: 60_000,
		ScanBatch:  256,
	}
}

const (
	metaHash  = "nsmeta"
	namesSet  = "nsmeta/names"
	scanBatch = 128
)

var (
	ErrInvalidName = errors.New("namespace: invalid name")
	ErrNotAllowed  = errors.New("namespace: not allowed")
	ErrNotFound    = errors.New("namespace: not found")
	ErrLimit       = errors.New("namespace: limit reached")
)

// Policy restricts which namespaces may exist.
type Policy struct {
	NameRegex  string
	Allowed    []string
	Max        int
	AutoCreate bool
}

// Check validates name against the policy.
func (p Policy) Check(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if p.NameRegex != "" {
		re, err := regexp.Compile("^(?:" + p.NameRegex + ")$")
		if err != nil {
			return err
		}
		if !re.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	if len(p.Allowed) > 0 && !slices.Contains(p.Allowed, name) {
		return fmt.Errorf("%w: %q", ErrNotAllowed, name)
	}
	return nil
}

// EnsureNamespace creates a namespace meta record if absent, returning the effective meta.
// Idempotent: returns existing if already present. defaults supplies the
// queue settings of a new record.
func EnsureNamespace(ctx context.Context, st store.Store, name string, defaults Meta, p Policy) (Meta, error) {
	if err := p.Check(name); err != nil {
		return Meta{}, err
	}
	var m Meta
	err := st.Update(ctx, func(tx store.Txn) error {
		b, err := tx.HGet(metaHash, name)
		if err == nil {
			if err := json.Unmarshal(b, &m); err == nil {
				return nil
			}
			// corrupted record is rewritten below
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		} else if !p.AutoCreate {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if p.Max > 0 {
			n, err := tx.SCard(namesSet)
			if err != nil {
				return err
			}
			known, err := tx.SIsMember(namesSet, name)
			if err != nil {
				return err
			}
			if !known && n >= p.Max {
				return fmt.Errorf("%w: %d", ErrLimit, p.Max)
			}
		}
		m = defaults
		m.Name = name
		m.CreatedAtMs = time.Now().UnixMilli()
		b, err = json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := tx.HSet(metaHash, name, b); err != nil {
			return err
		}
		_, err = tx.SAdd(namesSet, name)
		return err
	})
	if err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Get returns the metadata of an existing namespace.
func Get(ctx context.Context, st store.Store, name string) (Meta, error) {
	var m Meta
	err := st.View(ctx, func(tx store.Txn) error {
		b, err := tx.HGet(metaHash, name)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		return json.Unmarshal(b, &m)
	})
	return m, err
}

// List returns every namespace name in byte order.
func List(ctx context.Context, st store.Store) ([]string, error) {
	var names []string
	err := st.View(ctx, func(tx store.Txn) error {
		var err error
		names, err = store.Members(tx, namesSet, scanBatch)
		return err
	})
	return names, err
}

// LeaseTTL returns the namespace lease duration.
func (m Meta) LeaseTTL() time.Duration { return time.Duration(m.LeaseTTLMs) * time.Millisecond }
