// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing
// and flag binding. Command execution is delegated to handler functions in the
// handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/handlers"
)

// global holds the persistent flags shared by every subcommand.
var global handlers.Options

// Root returns the root command for the fleetalloc CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetalloc",
		Short: "Allocate and release pools of cloud instances",
		Long: `fleetalloc provisions batches of cloud instances, together with their
volumes and floating IPs, for a set of caller chosen logical IDs.

Instances that fail are rolled back. Every resource is tagged with its
logical ID, so repeating a command never leaks or duplicates resources.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.CountVarP(&global.Verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	pf.StringVar(&global.LogFormat, "log-format", "", "Log format: console or json (default: console on a terminal, json otherwise)")
	pf.StringVar(&global.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the command")

	cmd.AddCommand(Allocate())
	cmd.AddCommand(Delete())
	cmd.AddCommand(Find())
	cmd.AddCommand(State())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Version())

	return cmd
}

// options returns the global flags merged with the command's own flags.
func options(configPath, output string) handlers.Options {
	opts := global
	opts.ConfigPath = configPath
	opts.Output = output
	return opts
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "", "Path to configuration file (required)")
	_ = cmd.MarkFlagRequired("config")
}

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", handlers.OutputTable, "Output format: table, json or yaml")
}
