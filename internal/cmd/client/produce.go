package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/pattern"
	"github.com/MrMoose/rescue/internal/producer"
	"github.com/MrMoose/rescue/internal/workqueue"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// NewProduceCommand constructs the `produce` command which expands pattern
// lines and inserts every candidate into the queue.
func NewProduceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Queue the candidates of a pattern file",
		Long: `Read one pattern per line from --file (or stdin) and insert every
candidate it expands to. Blank lines and lines starting with '#' are skipped.
Each --suffix adds a variant "<line> <suffix>" of every line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("file")
			caseFlag, _ := cmd.Flags().GetString("case")
			if cmd.Flags().Changed("suffix") {
				cfg.Producer.Suffixes, _ = cmd.Flags().GetStringArray("suffix")
			}
			if cmd.Flags().Changed("filter") {
				cfg.Producer.Filter, _ = cmd.Flags().GetString("filter")
			}
			if cmd.Flags().Changed("max-candidates") {
				cfg.Producer.MaxCandidates, _ = cmd.Flags().GetUint64("max-candidates")
			}

			mode, err := pattern.ParseCaseMode(caseFlag)
			if err != nil {
				return err
			}
			filter, err := producer.NewFilter(cfg.Producer.Filter)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			logger := cliLogger(cmd, cfg)
			out := cmd.OutOrStdout()
			return withBackend(cmd, cfg, logger, metrics.NewNop(), func(ctx context.Context, q workqueue.Backend) error {
				p := producer.New(q, producer.Options{
					Suffixes:      cfg.Producer.Suffixes,
					Filter:        filter,
					CaseMode:      mode,
					MaxCandidates: cfg.Producer.MaxCandidates,
					Logger:        logger,
					OnLine: func(r producer.LineReport) {
						if r.Err != nil {
							fmt.Fprintf(out, "line %d: error: %v\n", r.Line, r.Err)
							return
						}
						fmt.Fprintf(out, "line %d: generated=%d inserted=%d known=%d filtered=%d\n",
							r.Line, r.Generated, r.Inserted, r.AlreadyKnown, r.Filtered)
					},
				})
				sum, err := p.Run(ctx, in)
				if err != nil {
					return err
				}
				if sum.Solved {
					logger.Info("queue is solved, producer stopped early", logpkg.Int("lines", sum.Lines))
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			})
		},
	}
	addServerFlags(cmd)
	cmd.Flags().StringP("file", "f", "-", "Pattern file (- for stdin)")
	cmd.Flags().StringArray("suffix", nil, "Suffix pattern appended to every line (repeatable)")
	cmd.Flags().String("filter", "", "CEL expression over candidate, length, pattern, line")
	cmd.Flags().String("case", "all", "Case permutation mode: all|first")
	cmd.Flags().Uint64("max-candidates", 0, "Skip patterns expanding to more candidates than this")
	return cmd
}
