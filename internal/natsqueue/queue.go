// Package natsqueue runs the candidate queue on NATS JetStream key-value
// buckets instead of a transactional store.
//
// JetStream KV has no multi-key transactions; atomicity comes from Create,
// which fails with ErrKeyExists when a key is live:
//
//	{prefix}_passwords  digest -> obfuscated text; Create deduplicates inserts
//	{prefix}_pending    digest -> empty; pending set
//	{prefix}_leases     digest -> obfuscated text; bucket TTL is the lease TTL
//	{prefix}_success    digest -> obfuscated text
//	{prefix}_failed     digest -> empty
//
// Return writes the terminal record before it removes the pending entry and
// the lease, and Poll drops pending entries that are already terminal, so a
// worker crashing halfway through Return leaves nothing leasable behind.
// Insert removes the passwords entry again when the pending write fails, and
// re-queues a passwords entry that is in no other bucket, so an interrupted
// Insert is completed by the next one.
//
// Poll streams pending keys in insertion order and inspects at most
// ScanBatch of them per call.
package natsqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/MrMoose/rescue/internal/candidate"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// Options configures a Queue.
type Options struct {
	LeaseTTL time.Duration
	// Key is the obfuscation key; empty selects candidate.DefaultKey.
	Key string
	// Replicas of every bucket. Defaults to 1.
	Replicas int
	// ScanBatch bounds the pending keys one Poll inspects. Defaults to
	// workqueue.DefaultScanBatch.
	ScanBatch int
	Logger   logpkg.Logger
	Metrics  metrics.Collector
}

// Queue implements workqueue.Backend on JetStream KV.
type Queue struct {
	passwords jetstream.KeyValue
	pending   jetstream.KeyValue
	leases    jetstream.KeyValue
	success   jetstream.KeyValue
	failed    jetstream.KeyValue

	scanBatch int

	obf     candidate.Obfuscator
	logger  logpkg.Logger
	metrics metrics.Collector
}

var _ workqueue.Backend = (*Queue)(nil)

// New creates or opens the buckets of namespace.
func New(ctx context.Context, js jetstream.JetStream, namespace string, opts Options) (*Queue, error) {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = workqueue.DefaultLeaseTTL
	}
	if opts.Replicas <= 0 {
		opts.Replicas = 1
	}
	if opts.ScanBatch <= 0 {
		opts.ScanBatch = workqueue.DefaultScanBatch
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	q := &Queue{
		scanBatch: opts.ScanBatch,
		obf:     candidate.NewObfuscator(opts.Key),
		logger:  opts.Logger.With(logpkg.Component("natsqueue"), logpkg.Str("namespace", namespace)),
		metrics: opts.Metrics,
	}
	prefix := "rescue_" + namespace
	buckets := []struct {
		kv  *jetstream.KeyValue
		cfg jetstream.KeyValueConfig
	}{
		{&q.passwords, jetstream.KeyValueConfig{Bucket: prefix + "_passwords", Replicas: opts.Replicas}},
		{&q.pending, jetstream.KeyValueConfig{Bucket: prefix + "_pending", Replicas: opts.Replicas}},
		{&q.leases, jetstream.KeyValueConfig{Bucket: prefix + "_leases", TTL: opts.LeaseTTL, Replicas: opts.Replicas}},
		{&q.success, jetstream.KeyValueConfig{Bucket: prefix + "_success", Replicas: opts.Replicas}},
		{&q.failed, jetstream.KeyValueConfig{Bucket: prefix + "_failed", Replicas: opts.Replicas}},
	}
	for _, b := range buckets {
		kv, err := EnsureBucket(ctx, js, b.cfg, 3)
		if err != nil {
			return nil, unavailable("open", err)
		}
		*b.kv = kv
	}
	return q, nil
}

// EnsureBucket creates or opens a KV bucket, retrying with exponential
// backoff when concurrent creators race.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, maxRetries int) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, cfg.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("bucket %s after %d attempts: %w", cfg.Bucket, maxRetries, lastErr)
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("natsqueue: %s: %w: %w", op, workqueue.ErrStoreUnavailable, err)
}

func exists(ctx context.Context, kv jetstream.KeyValue, key string) (bool, error) {
	_, err := kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// errWatchClosed reports a key watcher whose subscription went away before
// it delivered all initial keys.
var errWatchClosed = errors.New("key watcher closed")

// keys lists every live key of kv.
func keys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	l, err := kv.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for k := range l.Keys() {
		out = append(out, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// stopWatcher unsubscribes w and drains it in the background. A delivery
// blocked on the full updates channel then returns and the closed handler
// closes the channel.
func stopWatcher(w jetstream.KeyWatcher) {
	_ = w.Stop()
	go func() {
		for range w.Updates() {
		}
	}()
}

// Insert implements workqueue.Backend.
func (q *Queue) Insert(ctx context.Context, c string) (workqueue.InsertResult, error) {
	if c == "" {
		return workqueue.Inserted, workqueue.ErrEmptyCandidate
	}
	res, err := q.insert(ctx, c)
	if err != nil {
		q.metrics.RecordInsert("error")
		return res, unavailable("insert", err)
	}
	q.metrics.RecordInsert(res.String())
	return res, nil
}

func (q *Queue) insert(ctx context.Context, c string) (workqueue.InsertResult, error) {
	digest := candidate.Digest(c)
	leased, err := exists(ctx, q.leases, digest)
	if err != nil {
		return workqueue.Inserted, err
	}
	if leased {
		return workqueue.AlreadyKnown, nil
	}
	if _, err := q.passwords.Create(ctx, digest, q.obf.Encode(c)); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return q.requeueOrphan(ctx, digest)
		}
		return workqueue.Inserted, err
	}
	if _, err := q.pending.Put(ctx, digest, nil); err != nil {
		if derr := q.passwords.Delete(context.WithoutCancel(ctx), digest); derr != nil {
			q.logger.Warn("insert rollback failed", logpkg.Str("digest", digest[:16]), logpkg.Err(derr))
		}
		return workqueue.Inserted, err
	}
	return workqueue.Inserted, nil
}

// requeueOrphan handles a digest whose passwords entry exists. It is known
// unless it is in none of pending, leases, success and failed: then an
// earlier Insert stopped between its two writes and the pending entry is
// written now.
func (q *Queue) requeueOrphan(ctx context.Context, digest string) (workqueue.InsertResult, error) {
	for _, kv := range []jetstream.KeyValue{q.pending, q.leases, q.success, q.failed} {
		ok, err := exists(ctx, kv, digest)
		if err != nil {
			return workqueue.Inserted, err
		}
		if ok {
			return workqueue.AlreadyKnown, nil
		}
	}
	if _, err := q.pending.Put(ctx, digest, nil); err != nil {
		return workqueue.Inserted, err
	}
	q.logger.Info("requeued interrupted insert", logpkg.Str("digest", digest[:16]))
	return workqueue.Inserted, nil
}

// Poll implements workqueue.Backend. The first skipCount(hint) pending keys
// are tried last, so workers with different hints start at different keys.
func (q *Queue) Poll(ctx context.Context, hint string) (workqueue.PollResult, error) {
	start := time.Now()
	res, err := q.poll(ctx, hint)
	if err != nil {
		return workqueue.PollResult{}, err
	}
	q.metrics.RecordPoll(res.Found, time.Since(start))
	return res, nil
}

func (q *Queue) poll(ctx context.Context, hint string) (workqueue.PollResult, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := q.pending.WatchAll(wctx, jetstream.IgnoreDeletes(), jetstream.MetaOnly())
	if err != nil {
		return workqueue.PollResult{}, unavailable("poll", err)
	}
	defer stopWatcher(w)

	skip := skipCount(hint, q.scanBatch)
	var deferred []string
	for inspected := 0; inspected < q.scanBatch; inspected++ {
		var e jetstream.KeyValueEntry
		select {
		case <-ctx.Done():
			return workqueue.PollResult{}, ctx.Err()
		case u, ok := <-w.Updates():
			if !ok {
				return workqueue.PollResult{}, unavailable("poll", errWatchClosed)
			}
			e = u
		}
		if e == nil {
			break
		}
		if len(deferred) < skip {
			deferred = append(deferred, e.Key())
			continue
		}
		res, err := q.tryLease(ctx, e.Key())
		if err != nil || res.Found {
			return res, err
		}
	}
	for _, digest := range deferred {
		res, err := q.tryLease(ctx, digest)
		if err != nil || res.Found {
			return res, err
		}
	}
	return workqueue.PollResult{}, nil
}

// tryLease leases digest unless it is already leased or terminal.
func (q *Queue) tryLease(ctx context.Context, digest string) (workqueue.PollResult, error) {
	raw, err := q.passwords.Get(ctx, digest)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		q.metrics.RecordProtocolError("poll")
		q.logger.Error("pending digest without candidate text", logpkg.Str("digest", digest[:16]))
		return workqueue.PollResult{}, &workqueue.ProtocolError{Op: "poll", Code: -2}
	}
	if err != nil {
		return workqueue.PollResult{}, unavailable("poll", err)
	}
	if _, err := q.leases.Create(ctx, digest, raw.Value()); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return workqueue.PollResult{}, nil
		}
		return workqueue.PollResult{}, unavailable("poll", err)
	}
	terminal, err := q.terminal(ctx, digest)
	if err != nil {
		return workqueue.PollResult{}, unavailable("poll", err)
	}
	if terminal {
		// left behind by an interrupted Return
		_ = q.pending.Delete(ctx, digest)
		_ = q.leases.Delete(ctx, digest)
		return workqueue.PollResult{}, nil
	}
	return workqueue.PollResult{Candidate: q.obf.Decode(raw.Value()), Found: true}, nil
}

func (q *Queue) terminal(ctx context.Context, digest string) (bool, error) {
	ok, err := exists(ctx, q.success, digest)
	if err != nil || ok {
		return ok, err
	}
	return exists(ctx, q.failed, digest)
}

// skipCount is the number of leading pending keys a worker with hint tries
// last, in [0, batch).
func skipCount(hint string, batch int) int {
	if hint == "" || batch <= 1 {
		return 0
	}
	return int(xxh3.HashString(hint) % uint64(batch))
}

// Return implements workqueue.Backend.
func (q *Queue) Return(ctx context.Context, c string, succeeded bool) (workqueue.ReturnResult, error) {
	if c == "" {
		return workqueue.ReturnOK, workqueue.ErrEmptyCandidate
	}
	res, err := q.ret(ctx, c, succeeded)
	if err != nil {
		q.metrics.RecordReturn("error", succeeded)
		return res, unavailable("return", err)
	}
	if res == workqueue.LeaseNotFound {
		q.logger.Warn("return without a live lease", logpkg.Str("digest", candidate.Digest(c)[:16]), logpkg.Bool("succeeded", succeeded))
	}
	q.metrics.RecordReturn(res.String(), succeeded)
	return res, nil
}

func (q *Queue) ret(ctx context.Context, c string, succeeded bool) (workqueue.ReturnResult, error) {
	digest := candidate.Digest(c)
	leased, err := exists(ctx, q.leases, digest)
	if err != nil {
		return workqueue.ReturnOK, err
	}
	res := workqueue.ReturnOK
	if !leased {
		res = workqueue.LeaseNotFound
		if !succeeded {
			return res, nil
		}
	}
	text := q.obf.Encode(c)
	if succeeded {
		if _, err := q.success.Put(ctx, digest, text); err != nil {
			return res, err
		}
		if _, err := q.passwords.Create(ctx, digest, text); err != nil && !errors.Is(err, jetstream.ErrKeyExists) {
			return res, err
		}
	} else if _, err := q.failed.Put(ctx, digest, nil); err != nil {
		return res, err
	}
	if err := q.pending.Delete(ctx, digest); err != nil {
		return res, err
	}
	if leased {
		if err := q.leases.Delete(ctx, digest); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Solved implements workqueue.Backend.
func (q *Queue) Solved(ctx context.Context) (bool, error) {
	st, err := q.success.Status(ctx)
	if err != nil {
		return false, unavailable("solved", err)
	}
	return st.Values() > 0, nil
}

// Winners implements workqueue.Backend.
func (q *Queue) Winners(ctx context.Context) ([]string, error) {
	digests, err := keys(ctx, q.success)
	if err != nil {
		return nil, unavailable("winners", err)
	}
	sort.Strings(digests)
	out := make([]string, 0, len(digests))
	for _, d := range digests {
		e, err := q.success.Get(ctx, d)
		if err != nil {
			return nil, unavailable("winners", err)
		}
		out = append(out, q.obf.Decode(e.Value()))
	}
	return out, nil
}

// Stats implements workqueue.Backend.
func (q *Queue) Stats(ctx context.Context) (workqueue.Stats, error) {
	var s workqueue.Stats
	counts := []struct {
		kv  jetstream.KeyValue
		dst *int
	}{
		{q.passwords, &s.Candidates},
		{q.pending, &s.Pending},
		{q.leases, &s.Leased},
		{q.success, &s.Succeeded},
		{q.failed, &s.Failed},
	}
	for _, c := range counts {
		ks, err := keys(ctx, c.kv)
		if err != nil {
			return workqueue.Stats{}, unavailable("stats", err)
		}
		*c.dst = len(ks)
	}
	return s, nil
}
