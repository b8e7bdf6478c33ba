package workqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/MrMoose/rescue/internal/candidate"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/store"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

const (
	// DefaultLeaseTTL bounds how long a worker owns a candidate.
	DefaultLeaseTTL = 60 * time.Second
	// DefaultScanBatch is the number of pending digests examined per
	// poll transaction.
	DefaultScanBatch = 256
)

// Options configures a Queue.
type Options struct {
	LeaseTTL  time.Duration
	ScanBatch int
	// Key is the obfuscation key; empty selects candidate.DefaultKey.
	Key     string
	Logger  logpkg.Logger
	Metrics metrics.Collector
}

// Queue runs the queue scripts against a store.
type Queue struct {
	st        store.Store
	namespace string
	keys      Keys
	leaseTTL  time.Duration
	scanBatch int
	obf       candidate.Obfuscator
	logger    logpkg.Logger
	metrics   metrics.Collector
}

var _ Backend = (*Queue)(nil)

// New returns the queue of namespace inside st.
func New(st store.Store, namespace string, opts Options) *Queue {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.ScanBatch <= 0 {
		opts.ScanBatch = DefaultScanBatch
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	return &Queue{
		st:        st,
		namespace: namespace,
		keys:      NewKeys(namespace),
		leaseTTL:  opts.LeaseTTL,
		scanBatch: opts.ScanBatch,
		obf:       candidate.NewObfuscator(opts.Key),
		logger:    opts.Logger.With(logpkg.Component("workqueue"), logpkg.Str("namespace", namespace)),
		metrics:   opts.Metrics,
	}
}

// Namespace returns the queue's namespace.
func (q *Queue) Namespace() string { return q.namespace }

// run executes one script in an update transaction and checks its code.
func (q *Queue) run(ctx context.Context, op string, script func(tx store.Txn) (int, error)) (int, error) {
	var code int
	err := q.st.Update(ctx, func(tx store.Txn) error {
		c, err := script(tx)
		code = c
		return err
	})
	if err != nil {
		return 0, storeError(op, err)
	}
	if err := CheckCode(op, code); err != nil {
		q.logger.Error("script returned a code outside its contract", logpkg.Str("op", op), logpkg.Int("code", code))
		q.metrics.RecordProtocolError(op)
		return code, err
	}
	return code, nil
}

// Insert records candidate as pending unless its digest was seen before.
func (q *Queue) Insert(ctx context.Context, c string) (InsertResult, error) {
	if c == "" {
		return Inserted, ErrEmptyCandidate
	}
	digest := candidate.Digest(c)
	code, err := q.run(ctx, "insert", func(tx store.Txn) (int, error) {
		leased, err := tx.Exists(q.keys.Lease(digest))
		if err != nil {
			return 0, err
		}
		if leased {
			return codeKnown, nil
		}
		known, err := tx.HExists(q.keys.Passwords(), digest)
		if err != nil {
			return 0, err
		}
		if known {
			return codeKnown, nil
		}
		if _, err := tx.HSet(q.keys.Passwords(), digest, q.obf.Encode(c)); err != nil {
			return 0, err
		}
		if _, err := tx.SAdd(q.keys.Pending(), digest); err != nil {
			return 0, err
		}
		return codeOK, nil
	})
	if err != nil {
		q.metrics.RecordInsert("error")
		return Inserted, err
	}
	res := Inserted
	if code == codeKnown {
		res = AlreadyKnown
	}
	q.metrics.RecordInsert(res.String())
	return res, nil
}

// Poll leases one pending candidate without a live lease. The scan starts
// at a position derived from hint and wraps around, so workers with
// different hints spread over the pending set. Each batch of ScanBatch
// digests is one transaction.
func (q *Queue) Poll(ctx context.Context, hint string) (PollResult, error) {
	start := time.Now()
	res, err := q.poll(ctx, hint)
	if err == nil {
		q.metrics.RecordPoll(res.Found, time.Since(start))
	}
	return res, err
}

func (q *Queue) poll(ctx context.Context, hint string) (PollResult, error) {
	origin := scanOrigin(hint)
	cursor := origin
	wrapped := origin == ""
	for {
		var (
			res  PollResult
			next string
			done bool
		)
		_, err := q.run(ctx, "poll", func(tx store.Txn) (int, error) {
			res, next, done = PollResult{}, "", false
			members, nxt, err := tx.SScan(q.keys.Pending(), cursor, q.scanBatch)
			if err != nil {
				return 0, err
			}
			next = nxt
			for _, digest := range members {
				if wrapped && origin != "" && digest > origin {
					done = true
					return codeKnown, nil
				}
				leased, err := tx.Exists(q.keys.Lease(digest))
				if err != nil {
					return 0, err
				}
				if leased {
					continue
				}
				raw, err := tx.HGet(q.keys.Passwords(), digest)
				if errors.Is(err, store.ErrNotFound) {
					return codeMissingText, nil
				}
				if err != nil {
					return 0, err
				}
				if err := tx.SetEX(q.keys.Lease(digest), raw, q.leaseTTL); err != nil {
					return 0, err
				}
				res = PollResult{Candidate: q.obf.Decode(raw), Found: true}
				return codeOK, nil
			}
			return codeKnown, nil
		})
		if err != nil {
			return PollResult{}, err
		}
		if res.Found || done {
			return res, nil
		}
		if next == "" {
			if wrapped {
				return PollResult{}, nil
			}
			wrapped, cursor = true, ""
			continue
		}
		cursor = next
	}
}

// scanOrigin maps a hint to a position in the hex digest keyspace.
func scanOrigin(hint string) string {
	if hint == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.HashString(hint))
}

// Return reports the verdict for a leased candidate. Without a live lease
// a success is still recorded and LeaseNotFound is reported; a failure
// without a lease changes nothing.
func (q *Queue) Return(ctx context.Context, c string, succeeded bool) (ReturnResult, error) {
	if c == "" {
		return ReturnOK, ErrEmptyCandidate
	}
	digest := candidate.Digest(c)
	code, err := q.run(ctx, "return", func(tx store.Txn) (int, error) {
		leased, err := tx.Exists(q.keys.Lease(digest))
		if err != nil {
			return 0, err
		}
		if !leased {
			if !succeeded {
				return codeKnown, nil
			}
			if err := q.recordSuccess(tx, digest, c); err != nil {
				return 0, err
			}
			return codeKnown, nil
		}
		if _, err := tx.Del(q.keys.Lease(digest)); err != nil {
			return 0, err
		}
		if succeeded {
			if err := q.recordSuccess(tx, digest, c); err != nil {
				return 0, err
			}
			return codeOK, nil
		}
		if _, err := tx.SRem(q.keys.Pending(), digest); err != nil {
			return 0, err
		}
		if _, err := tx.SAdd(q.keys.Failed(), digest); err != nil {
			return 0, err
		}
		return codeOK, nil
	})
	if err != nil {
		q.metrics.RecordReturn("error", succeeded)
		return ReturnOK, err
	}
	res := ReturnOK
	if code == codeKnown {
		res = LeaseNotFound
		q.logger.Warn("return without a live lease", logpkg.Str("digest", digest[:16]), logpkg.Bool("succeeded", succeeded))
	}
	q.metrics.RecordReturn(res.String(), succeeded)
	return res, nil
}

func (q *Queue) recordSuccess(tx store.Txn, digest, c string) error {
	if _, err := tx.SRem(q.keys.Pending(), digest); err != nil {
		return err
	}
	if _, err := tx.SAdd(q.keys.Success(), digest); err != nil {
		return err
	}
	// a late report for a digest never inserted still needs its text
	known, err := tx.HExists(q.keys.Passwords(), digest)
	if err != nil || known {
		return err
	}
	_, err = tx.HSet(q.keys.Passwords(), digest, q.obf.Encode(c))
	return err
}

// Solved reports whether any candidate has been returned as matching.
func (q *Queue) Solved(ctx context.Context) (bool, error) {
	var n int
	err := q.st.View(ctx, func(tx store.Txn) error {
		var err error
		n, err = tx.SCard(q.keys.Success())
		return err
	})
	return n > 0, storeError("solved", err)
}

// Winners decodes every candidate in the success set.
func (q *Queue) Winners(ctx context.Context) ([]string, error) {
	var out []string
	err := q.st.View(ctx, func(tx store.Txn) error {
		digests, err := store.Members(tx, q.keys.Success(), q.scanBatch)
		if err != nil {
			return err
		}
		for _, d := range digests {
			raw, err := tx.HGet(q.keys.Passwords(), d)
			if errors.Is(err, store.ErrNotFound) {
				return &ProtocolError{Op: "winners", Code: codeMissingText}
			}
			if err != nil {
				return err
			}
			out = append(out, q.obf.Decode(raw))
		}
		return nil
	})
	if err != nil {
		return nil, storeError("winners", err)
	}
	return out, nil
}

// Stats counts the queue's collections.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := q.st.View(ctx, func(tx store.Txn) error {
		var err error
		if s.Candidates, err = tx.HLen(q.keys.Passwords()); err != nil {
			return err
		}
		if s.Pending, err = tx.SCard(q.keys.Pending()); err != nil {
			return err
		}
		if s.Leased, err = tx.CountPrefix(q.keys.LeasePrefix()); err != nil {
			return err
		}
		if s.Succeeded, err = tx.SCard(q.keys.Success()); err != nil {
			return err
		}
		s.Failed, err = tx.SCard(q.keys.Failed())
		return err
	})
	if err != nil {
		return Stats{}, storeError("stats", err)
	}
	return s, nil
}
