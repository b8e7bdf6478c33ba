package client

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	rclient "github.com/MrMoose/rescue/internal/client"
	cfgpkg "github.com/MrMoose/rescue/internal/config"
	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

var (
	successColor = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("241")

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(successColor).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// serverAddrFromEnv returns the server address from RESCUE_SERVER or a default.
func serverAddrFromEnv() string {
	if addr := os.Getenv("RESCUE_SERVER"); addr != "" {
		return addr
	}
	return rclient.DefaultAddr
}

// addServerFlags registers --server, --namespace and --config.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("server", "s", "", "Coordination server gRPC address or nats:// URL (default $RESCUE_SERVER or "+rclient.DefaultAddr+")")
	cmd.Flags().StringP("namespace", "n", "default", "Namespace")
	cmd.Flags().String("config", os.Getenv("RESCUE_CONFIG"), "Config file (JSON or YAML)")
}

// loadConfig reads --config and overlays RESCUE_* variables.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	cfgpkg.FromEnv(&cfg)
	return cfg, nil
}

// withBackend opens the backend named by the command flags and closes it after fn.
func withBackend(cmd *cobra.Command, cfg cfgpkg.Config, logger logpkg.Logger, m metrics.Collector, fn func(context.Context, workqueue.Backend) error) error {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		addr = serverAddrFromEnv()
	}
	ns, _ := cmd.Flags().GetString("namespace")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	q, closer, err := rclient.Open(ctx, addr, rclient.Options{
		Namespace: ns,
		LeaseTTL:  cfg.LeaseTTL(),
		Key:       cfg.Queue.ObfuscationKey,
		ScanBatch: cfg.Queue.ScanBatch,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	return fn(ctx, q)
}

// cliLogger writes text lines to the command's error stream at cfg.Log.Level.
func cliLogger(cmd *cobra.Command, cfg cfgpkg.Config) logpkg.Logger {
	return newLogger(cmd.ErrOrStderr(), cfg.Log)
}

func newLogger(w io.Writer, lc cfgpkg.LogConfig) logpkg.Logger {
	lvl, err := logpkg.ParseLevel(lc.Level)
	if err != nil {
		lvl = logpkg.InfoLevel
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(lvl),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewWriterOutput(w)),
		logpkg.WithRevealSecrets(lc.RevealSecrets),
	)
}

// renderWinner formats the banner printed when a passphrase is found.
func renderWinner(candidate string) string {
	return bannerStyle.Render("passphrase found: " + candidate)
}
