package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// Validate returns the validate command.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the template against the control plane",
		Long: `Validate checks that the availability zone, image, key pair, security
groups and floating IP pool named by the template exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(cmd.Context(), options(configPath, ""))
		},
	}

	addConfigFlag(cmd, &configPath)

	return cmd
}
