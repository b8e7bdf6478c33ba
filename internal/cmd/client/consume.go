package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/verify"
	"github.com/MrMoose/rescue/internal/worker"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// NewConsumeCommand constructs the `consume` command which runs a worker
// pool against the queue until a passphrase is found.
func NewConsumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Verify queued candidates against a resource",
		Long: `Run a pool of workers that lease candidates from the queue and verify
them against --resource. The exec verifier runs --command per candidate with
the candidate on stdin; the digest verifier compares the SHA-512 of each
candidate with the hex digest stored in the resource file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			resPath, _ := cmd.Flags().GetString("resource")
			kind, _ := cmd.Flags().GetString("verifier")
			command, _ := cmd.Flags().GetString("command")
			metricsAddr, _ := cmd.Flags().GetString("metrics")
			idleExit, _ := cmd.Flags().GetInt("idle-exit")
			if cmd.Flags().Changed("workers") {
				cfg.Worker.Workers, _ = cmd.Flags().GetInt("workers")
			}

			v, err := newVerifier(kind, command)
			if err != nil {
				return err
			}
			res, err := verify.OpenResource(resPath)
			if err != nil {
				return err
			}

			logger := cliLogger(cmd, cfg)
			var collector metrics.Collector = metrics.NewNop()
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				collector = metrics.NewPrometheus(reg, "")
				stop, err := serveMetrics(metricsAddr, reg, logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			out := cmd.OutOrStdout()
			return withBackend(cmd, cfg, logger, collector, func(ctx context.Context, q workqueue.Backend) error {
				pool := worker.New(q, v, res, worker.Options{
					Size:         cfg.Worker.Workers,
					PollInterval: cfg.PollInterval(),
					PollTimeout:  cfg.PollTimeout(),
					IdleExit:     idleExit,
					Logger:       logger,
					Metrics:      collector,
				})
				result := pool.Run(ctx)
				if result.Found {
					fmt.Fprintln(out, renderWinner(result.Winner))
				} else {
					fmt.Fprintf(out, "no passphrase found by this pool (%d attempts)\n", result.Attempts)
				}
				return nil
			})
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("resource", "r", "", "Resource to verify against (LUKS device/header or digest file)")
	cmd.Flags().IntP("workers", "w", 0, "Number of workers (default: number of CPUs)")
	cmd.Flags().String("verifier", "exec", "Verifier: exec|digest")
	cmd.Flags().String("command", strings.Join(verify.DefaultCommand, " "), "Command for the exec verifier; {resource} is replaced by the resource path")
	cmd.Flags().String("metrics", "", "Serve Prometheus metrics on this address")
	cmd.Flags().Int("idle-exit", 0, "Stop a worker after this many consecutive empty polls (0 = never)")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func newVerifier(kind, command string) (verify.Verifier, error) {
	switch kind {
	case "", "exec":
		argv := strings.Fields(command)
		if len(argv) == 0 {
			return nil, errors.New("empty --command")
		}
		return &verify.Exec{Command: argv}, nil
	case "digest":
		return verify.Digest{}, nil
	default:
		return nil, fmt.Errorf("invalid --verifier %q; use exec|digest", kind)
	}
}

// serveMetrics exposes reg on addr and returns a shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, logger logpkg.Logger) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", logpkg.Err(err))
		}
	}()
	logger.Info("serving metrics", logpkg.Str("addr", l.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
