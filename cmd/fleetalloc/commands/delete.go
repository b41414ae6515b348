package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// Delete returns the delete command.
//
// The delete command releases floating IPs, instances and volumes tagged
// with the given logical IDs, in that order.
func Delete() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Release every resource of the given logical IDs",
		Long: `Delete releases the floating IPs, instances and volumes tagged with the
given logical IDs. Logical IDs that were never allocated are skipped.

Example:
  fleetalloc delete -c fleetalloc.yaml node-1 node-2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Delete(cmd.Context(), options(configPath, ""), args)
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
