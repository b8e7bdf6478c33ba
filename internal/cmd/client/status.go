package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrMoose/rescue/internal/metrics"
	"github.com/MrMoose/rescue/internal/workqueue"
)

type statusView struct {
	workqueue.Stats
	Winners []string `json:"winners"`
}

// NewStatusCommand constructs the `status` command printing queue
// statistics and any winning candidates.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue statistics and winners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			return withBackend(cmd, cfg, cliLogger(cmd, cfg), metrics.NewNop(), func(ctx context.Context, q workqueue.Backend) error {
				stats, err := q.Stats(ctx)
				if err != nil {
					return err
				}
				winners, err := q.Winners(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(statusView{Stats: stats, Winners: winners})
				}
				rows := []struct {
					label string
					value int
				}{
					{"candidates", stats.Candidates},
					{"pending", stats.Pending},
					{"leased", stats.Leased},
					{"succeeded", stats.Succeeded},
					{"failed", stats.Failed},
				}
				for _, r := range rows {
					fmt.Fprintf(out, "%s %d\n", labelStyle.Render(fmt.Sprintf("%-10s", r.label)), r.value)
				}
				for _, w := range winners {
					fmt.Fprintln(out, renderWinner(w))
				}
				return nil
			})
		},
	}
	addServerFlags(cmd)
	cmd.Flags().Bool("json", false, "Print JSON")
	return cmd
}
