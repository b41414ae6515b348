package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// Allocate returns the allocate command.
func Allocate() *cobra.Command {
	var (
		configPath string
		output     string
		minCount   int
	)

	cmd := &cobra.Command{
		Use:   "allocate ID...",
		Short: "Allocate one instance per logical ID",
		Long: `Allocate creates one instance per logical ID from the configured template.

Instances are created, waited on until they have an address, given a floating
IP and volumes when the template asks for them. Instances that fail a step are
released. When fewer than --min-count instances are ready, every instance of
the batch is released and the command fails.

Resources left over from an earlier attempt with the same logical IDs are
released first.

Example:
  fleetalloc allocate -c fleetalloc.yaml --min-count 2 node-1 node-2 node-3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Allocate(cmd.Context(), options(configPath, output), minCount, args)
		},
	}

	addConfigFlag(cmd, &configPath)
	addOutputFlag(cmd, &output)
	cmd.Flags().IntVar(&minCount, "min-count", 1, "Minimum number of ready instances for the batch to succeed")

	return cmd
}
