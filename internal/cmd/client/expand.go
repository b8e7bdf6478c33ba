package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrMoose/rescue/internal/pattern"
)

// NewExpandCommand constructs the `expand` command which enumerates a
// pattern locally without touching any queue.
func NewExpandCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand PATTERN",
		Short: "Print the candidate count and candidates of a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseFlag, _ := cmd.Flags().GetString("case")
			limit, _ := cmd.Flags().GetInt("limit")
			countOnly, _ := cmd.Flags().GetBool("count")

			mode, err := pattern.ParseCaseMode(caseFlag)
			if err != nil {
				return err
			}
			pat, err := pattern.Parse(args[0])
			if err != nil {
				return err
			}
			it := pattern.NewIterator(pat, mode)
			out := cmd.OutOrStdout()
			if n, ok := it.Count(); ok {
				fmt.Fprintf(out, "count: %d\n", n)
			} else {
				fmt.Fprintln(out, "count: overflow")
			}
			if countOnly {
				return nil
			}
			for i := 0; it.Next(); i++ {
				if limit > 0 && i >= limit {
					fmt.Fprintln(out, "...")
					break
				}
				fmt.Fprintln(out, it.Candidate())
			}
			return nil
		},
	}
	cmd.Flags().String("case", "all", "Case permutation mode: all|first")
	cmd.Flags().Int("limit", 20, "Maximum candidates to print (0 = all)")
	cmd.Flags().Bool("count", false, "Only print the candidate count")
	return cmd
}
