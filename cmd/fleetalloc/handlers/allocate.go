package handlers

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/imamik/fleetalloc/internal/allocation"
)

// Allocate handles the allocate command.
//
// The template is validated against the control plane first; any error
// aborts before a resource is created. The ready instances are printed even
// when the allocation finished with conditions.
func Allocate(ctx context.Context, opts Options, minCount int, logicalIDs []string) (err error) {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer func() { err = e.finish(err) }()

	if err := preflight(ctx, e); err != nil {
		return err
	}

	result, allocErr := e.orch.Allocate(ctx, e.cfg.Template, logicalIDs, minCount)
	if result != nil {
		if err := printResult(opts.Output, result); err != nil {
			return err
		}
	}
	if allocErr != nil {
		return fmt.Errorf("allocate failed: %w", allocErr)
	}
	return nil
}

func printResult(format string, result *allocation.Result) error {
	return render(stdout, format, result, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "LOGICAL ID\tINSTANCE ID\tNAME\tFLOATING IP\tVOLUMES")
		for _, inst := range result.Instances {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inst.LogicalID, inst.InstanceID, inst.Name,
				dash(inst.FloatingIP), dash(strings.Join(inst.VolumeIDs, ",")))
		}
		if len(result.RolledBack) > 0 {
			fmt.Fprintf(tw, "\nrolled back: %s\n", strings.Join(result.RolledBack, ", "))
		}
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
