// Package worker runs the consume side: a pool of identical goroutines
// that lease candidates, verify them and report the verdict.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/verify"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 5 * time.Second
	// returnAttempts bounds retries of a successful verdict.
	returnAttempts = 3
)

// Options configures a Pool.
type Options struct {
	// Size is the number of workers; defaults to runtime.NumCPU().
	Size int
	// PollInterval is the pause before each cycle; negative disables it.
	PollInterval time.Duration
	// PollTimeout bounds every queue round trip: Poll, Solved and each
	// Return attempt.
	PollTimeout time.Duration
	// IdleExit makes a worker exit after this many consecutive polls
	// without work. Zero keeps workers polling until stopped.
	IdleExit int
	Logger   logpkg.Logger
	Metrics  metrics.Collector
}

// Result summarizes a finished Run.
type Result struct {
	Winner   string
	Found    bool
	Attempts int64
}

// WorkerStats are the counters of one worker.
type WorkerStats struct {
	Polls    int64
	Attempts int64
	Errors   int64
}

type counters struct {
	polls    atomic.Int64
	attempts atomic.Int64
	errors   atomic.Int64
}

// Pool verifies candidates leased from a queue until one matches, the
// context ends or Stop is called.
type Pool struct {
	queue    workqueue.Backend
	verifier verify.Verifier
	resource *verify.Resource
	opts     Options
	logger   logpkg.Logger
	metrics  metrics.Collector

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	active   atomic.Int64
	stats    *xsync.MapOf[string, *counters]

	mu     sync.Mutex
	winner string
	found  bool
}

// New builds a pool. Run may be called once.
func New(q workqueue.Backend, v verify.Verifier, res *verify.Resource, opts Options) *Pool {
	if opts.Size <= 0 {
		opts.Size = runtime.NumCPU()
	}
	if opts.PollInterval < 0 {
		opts.PollInterval = 0
	} else if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	return &Pool{
		queue:    q,
		verifier: v,
		resource: res,
		opts:     opts,
		logger:   opts.Logger.WithComponent("worker"),
		metrics:  opts.Metrics,
		stopCh:   make(chan struct{}),
		stats:    xsync.NewMapOf[string, *counters](),
	}
}

// Run starts the workers and blocks until all of them have exited.
func (p *Pool) Run(ctx context.Context) Result {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Size; i++ {
		id := uuid.NewString()
		c := &counters{}
		p.stats.Store(id, c)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.metrics.SetActiveWorkers(int(p.active.Add(1)))
			defer func() { p.metrics.SetActiveWorkers(int(p.active.Add(-1))) }()
			p.work(ctx, id, c)
		}()
	}
	p.logger.Info("workers started", logpkg.Int("size", p.opts.Size))
	wg.Wait()

	res := Result{}
	p.stats.Range(func(_ string, c *counters) bool {
		res.Attempts += c.attempts.Load()
		return true
	})
	p.mu.Lock()
	res.Winner, res.Found = p.winner, p.found
	p.mu.Unlock()
	return res
}

// Stop asks every worker to exit after its current cycle.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		close(p.stopCh)
	})
}

// Stats returns a copy of the per-worker counters keyed by worker id.
func (p *Pool) Stats() map[string]WorkerStats {
	out := make(map[string]WorkerStats, p.stats.Size())
	p.stats.Range(func(id string, c *counters) bool {
		out[id] = WorkerStats{Polls: c.polls.Load(), Attempts: c.attempts.Load(), Errors: c.errors.Load()}
		return true
	})
	return out
}

func (p *Pool) work(ctx context.Context, id string, c *counters) {
	log := p.logger.With(logpkg.Str("worker", id))
	idle := 0
	for {
		if p.stopped.Load() || ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-time.After(p.opts.PollInterval):
		}

		cand, ok := p.poll(ctx, id, c, log)
		if !ok {
			if p.stopped.Load() {
				return
			}
			idle++
			if p.opts.IdleExit > 0 && idle >= p.opts.IdleExit {
				log.Debug("no work left, exiting")
				return
			}
			continue
		}
		idle = 0

		c.attempts.Add(1)
		start := time.Now()
		matched, err := p.verifier.Verify(ctx, p.resource, cand)
		p.metrics.RecordVerify(matched, time.Since(start))
		if err != nil {
			// the lease expires and another worker retries the candidate
			c.errors.Add(1)
			log.Error("verifier failed", logpkg.Secret("candidate", cand), logpkg.Err(err))
			continue
		}
		p.report(ctx, cand, matched, c, log)
		if matched {
			p.mu.Lock()
			if !p.found {
				p.winner, p.found = cand, true
			}
			p.mu.Unlock()
			log.Info("candidate matched", logpkg.Secret("candidate", cand))
			p.Stop()
			return
		}
	}
}

// poll leases one candidate. It reports false when there is nothing to do
// this cycle and stops the pool when the queue is already solved.
func (p *Pool) poll(ctx context.Context, id string, c *counters, log logpkg.Logger) (string, bool) {
	c.polls.Add(1)
	pctx, cancel := p.callCtx(ctx)
	res, err := p.queue.Poll(pctx, id)
	cancel()
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return "", false
	case errors.Is(err, context.DeadlineExceeded):
		log.Debug("poll timed out")
		return "", false
	case errors.Is(err, workqueue.ErrInternalProtocol):
		c.errors.Add(1)
		log.Error("queue protocol error", logpkg.Err(err))
		return "", false
	default:
		c.errors.Add(1)
		log.Warn("poll failed", logpkg.Err(err))
		return "", false
	}
	if res.Found {
		return res.Candidate, true
	}
	sctx, cancel := p.callCtx(ctx)
	solved, err := p.queue.Solved(sctx)
	cancel()
	if err != nil {
		log.Warn("solved check failed", logpkg.Err(err))
		return "", false
	}
	if solved {
		log.Info("queue already solved, stopping")
		p.Stop()
	}
	return "", false
}

func (p *Pool) report(ctx context.Context, cand string, matched bool, c *counters, log logpkg.Logger) {
	attempts := 1
	if matched {
		attempts = returnAttempts
	}
	for i := 0; i < attempts; i++ {
		rctx, cancel := p.callCtx(ctx)
		res, err := p.queue.Return(rctx, cand, matched)
		cancel()
		if err == nil {
			if res == workqueue.LeaseNotFound {
				log.Warn("lease expired before return", logpkg.Secret("candidate", cand), logpkg.Bool("matched", matched))
			}
			return
		}
		c.errors.Add(1)
		log.Warn("return failed", logpkg.Err(err), logpkg.Int("attempt", i+1))
		if ctx.Err() != nil || errors.Is(err, workqueue.ErrInternalProtocol) {
			return
		}
	}
}

func (p *Pool) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.PollTimeout)
}
