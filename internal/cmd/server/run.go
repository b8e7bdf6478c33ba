package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/runtime"
	grpcserver "github.com/MrMoose/rescue/internal/server/grpc"
	httpserver "github.com/MrMoose/rescue/internal/server/http"
	pebblestore "github.com/MrMoose/rescue/internal/storage/pebble"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// storeDir is the engine directory below the data dir.
func (o Options) storeDir() string {
	return filepath.Join(o.DataDir, "store")
}

// newLogger builds the process logger from RESCUE_LOG_* with the config
// as fallback; defaults: level=info, format=text.
func newLogger(cfg cfgpkg.Config) logpkg.Logger {
	lc := &logpkg.Config{
		Level:         getenvDefault("RESCUE_LOG_LEVEL", cfg.Log.Level),
		Format:        getenvDefault("RESCUE_LOG_FORMAT", cfg.Log.Format),
		RevealSecrets: cfg.Log.RevealSecrets,
	}
	logger, err := logpkg.ApplyConfig(lc)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(lc.Level); e == nil {
			lvl = l
		}
		logger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	return logger
}

// Run starts gRPC and HTTP servers and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	procLogger := newLogger(opts.Config)
	// Pebble logs through the standard library logger
	logpkg.RedirectStdLog(procLogger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheus(reg, "")

	rt, err := runtime.Open(runtime.Options{
		DataDir:       opts.storeDir(),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
		Metrics:       collector,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	if _, err := rt.EnsureNamespace(sctx, opts.Config.DefaultNamespaceName); err != nil {
		procLogger.Warn("default namespace unavailable", logpkg.Err(err))
	}

	procLogger.Info("Starting rescue server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("engine", opts.Config.Engine),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Duration("lease_ttl", opts.Config.LeaseTTL()),
	)

	gsrv := grpcserver.New(rt)
	hsrv := httpserver.New(rt, procLogger, reg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(sctx, opts.GRPCAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("grpc server failed", logpkg.Err(err))
			stop()
		}
	}()

	if opts.HTTPAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
				procLogger.Error("http server failed", logpkg.Err(err))
				stop()
			}
		}()
	}

	<-sctx.Done()
	// both servers stop on sctx; the store closes only after they drained
	wg.Wait()
	gsrv.Close()
	hsrv.Close()
	procLogger.Info("rescue server stopped")
	return nil
}
