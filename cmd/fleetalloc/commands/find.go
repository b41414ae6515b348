package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// Find returns the find command.
func Find() *cobra.Command {
	var configPath, output string

	cmd := &cobra.Command{
		Use:   "find ID...",
		Short: "Show the existing instances of the given logical IDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Find(cmd.Context(), options(configPath, output), args)
		},
	}

	addConfigFlag(cmd, &configPath)
	addOutputFlag(cmd, &output)

	return cmd
}
