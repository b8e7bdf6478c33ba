package client

import (
	"github.com/spf13/cobra"
)

// Register adds the client command groups to root.
func Register(root *cobra.Command) {
	root.AddCommand(
		NewProduceCommand(),
		NewConsumeCommand(),
		NewStatusCommand(),
		NewExpandCommand(),
	)
}

// NewRoot constructs a standalone root command carrying the client commands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "rescue",
		Short: "rescue client commands",
	}
	Register(root)
	return root
}
