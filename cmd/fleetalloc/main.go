// Package main is the entry point for the fleetalloc CLI.
//
// fleetalloc allocates batches of cloud instances on OpenStack or Hetzner
// Cloud for a set of logical IDs and rolls back the ones that fail.
//
// Commands: allocate, delete, find, state, validate, version.
//
// For detailed usage information, run:
//
//	fleetalloc --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/fleetalloc/cmd/fleetalloc/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
