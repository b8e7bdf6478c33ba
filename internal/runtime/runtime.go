package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/namespace"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	"github.com/MrMoose/rescue/internal/store"
	"github.com/MrMoose/rescue/internal/store/memstore"
	"github.com/MrMoose/rescue/internal/store/pebblekv"
	"github.com/MrMoose/rescue/internal/store/sqlstore"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// sweepBatch bounds the expired keys removed per sweeper tick.
const sweepBatch = 1024

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	Metrics       metrics.Collector
}

// Runtime wires storage, config, and queues for a single coordination server.
type Runtime struct {
	st      store.Store
	config  cfgpkg.Config
	root    logpkg.Logger
	logger  logpkg.Logger
	metrics metrics.Collector

	mu     sync.Mutex
	queues map[string]*workqueue.Queue

	stop chan struct{}
	done chan struct{}
}

// Open initializes the configured storage engine and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}
	if opts.Config.Engine == "" {
		opts.Config.Engine = cfgpkg.EnginePebble
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		config:  opts.Config,
		root:    opts.Logger,
		logger:  opts.Logger.WithComponent("runtime"),
		metrics: opts.Metrics,
		queues:  make(map[string]*workqueue.Queue),
	}
	switch opts.Config.Engine {
	case cfgpkg.EngineMemory:
		st := memstore.New()
		r.st = st
		if iv := opts.Config.SweepInterval(); iv > 0 {
			r.stop, r.done = make(chan struct{}), make(chan struct{})
			go r.sweepLoop(st, iv)
		}
	case cfgpkg.EngineSQLite:
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, err
		}
		st, err := sqlstore.Open(filepath.Join(opts.DataDir, "rescue.db"))
		if err != nil {
			return nil, err
		}
		r.st = st
		if iv := opts.Config.SweepInterval(); iv > 0 {
			r.stop, r.done = make(chan struct{}), make(chan struct{})
			go r.sweepLoop(st, iv)
		}
	default:
		db, err := pebblestore.Open(pebblestore.Options{DataDir: opts.DataDir, Fsync: opts.Fsync, FsyncInterval: opts.FsyncInterval, Metrics: opts.Metrics})
		if err != nil {
			return nil, err
		}
		kv := pebblekv.New(db, pebblekv.Options{Logger: opts.Logger, OwnsDB: true})
		if iv := opts.Config.SweepInterval(); iv > 0 {
			kv.StartSweeper(iv, sweepBatch)
		}
		r.st = kv
	}
	r.logger.Info("storage opened", logpkg.Str("engine", opts.Config.Engine), logpkg.Str("data_dir", opts.DataDir))
	return r, nil
}

// sweepLoop reclaims expired keys for engines without their own sweeper.
func (r *Runtime) sweepLoop(sw store.Sweeper, interval time.Duration) {
	defer close(r.done)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		jitter := time.Duration(rng.Int63n(int64(interval)/10 + 1))
		select {
		case <-r.stop:
			return
		case <-time.After(interval + jitter):
		}
		n, err := sw.Sweep(context.Background(), sweepBatch)
		if err != nil {
			r.logger.Warn("sweep failed", logpkg.Err(err))
			continue
		}
		if n > 0 {
			r.logger.Debug("swept expired keys", logpkg.Int("count", n))
		}
	}
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.st == nil {
		return nil
	}
	if r.stop != nil {
		close(r.stop)
		<-r.done
		r.stop = nil
	}
	return r.st.Close()
}

// CheckHealth performs a read transaction against the store.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.st == nil {
		return errors.New("store not open")
	}
	return r.st.View(ctx, func(tx store.Txn) error {
		_, err := tx.Exists("health")
		return err
	})
}

func (r *Runtime) policy() namespace.Policy {
	return namespace.Policy{
		NameRegex:  r.config.NamespaceNameRegex,
		Allowed:    r.config.AllowedNamespaces,
		Max:        r.config.MaxNamespaces,
		AutoCreate: r.config.AllowAutoCreateNamespaces,
	}
}

// EnsureNamespace creates a namespace record if absent.
func (r *Runtime) EnsureNamespace(ctx context.Context, name string) (namespace.Meta, error) {
	defaults := namespace.Meta{LeaseTTLMs: r.config.Queue.LeaseTTLMs, ScanBatch: r.config.Queue.ScanBatch}
	return namespace.EnsureNamespace(ctx, r.st, name, defaults, r.policy())
}

// Namespaces lists the known namespaces.
func (r *Runtime) Namespaces(ctx context.Context) ([]string, error) {
	return namespace.List(ctx, r.st)
}

// Queue returns the work queue of ns, creating the namespace on first use.
// An empty ns selects the configured default namespace.
func (r *Runtime) Queue(ctx context.Context, ns string) (*workqueue.Queue, error) {
	if ns == "" {
		ns = r.config.DefaultNamespaceName
	}
	r.mu.Lock()
	q, ok := r.queues[ns]
	r.mu.Unlock()
	if ok {
		return q, nil
	}
	meta, err := r.EnsureNamespace(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("namespace %q: %w", ns, err)
	}
	q = workqueue.New(r.st, ns, workqueue.Options{
		LeaseTTL:  meta.LeaseTTL(),
		ScanBatch: meta.ScanBatch,
		Key:       r.config.Queue.ObfuscationKey,
		Logger:    r.root,
		Metrics:   r.metrics,
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.queues[ns]; ok {
		return existing, nil
	}
	r.queues[ns] = q
	return q, nil
}

// Store exposes the underlying store (internal use only).
func (r *Runtime) Store() store.Store { return r.st }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the logger servers derive theirs from.
func (r *Runtime) Logger() logpkg.Logger { return r.root }
