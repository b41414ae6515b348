package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// State returns the state command.
func State() *cobra.Command {
	var configPath, output string

	cmd := &cobra.Command{
		Use:   "state ID...",
		Short: "Show the status of every given logical ID",
		Long: `State prints one status per logical ID: PENDING, RUNNING, STOPPED,
FAILED, UNKNOWN, or DELETED for logical IDs without an instance.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.State(cmd.Context(), options(configPath, output), args)
		},
	}

	addConfigFlag(cmd, &configPath)
	addOutputFlag(cmd, &output)

	return cmd
}
