package handlers

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/imamik/fleetalloc/internal/cloud"
)

type stateView struct {
	LogicalID string       `json:"logicalId" yaml:"logicalId"`
	Status    cloud.Status `json:"status" yaml:"status"`
}

// State handles the state command. Every requested logical ID is printed in
// request order; IDs without an instance report DELETED.
func State(ctx context.Context, opts Options, logicalIDs []string) (err error) {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer func() { err = e.finish(err) }()

	states, err := e.orch.GetInstanceState(ctx, e.cfg.Template, logicalIDs)
	if err != nil {
		return fmt.Errorf("state failed: %w", err)
	}

	seen := make(map[string]bool, len(logicalIDs))
	views := make([]stateView, 0, len(states))
	for _, id := range logicalIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		views = append(views, stateView{LogicalID: id, Status: states[id]})
	}

	return render(stdout, opts.Output, views, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "LOGICAL ID\tSTATUS")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\n", v.LogicalID, v.Status)
		}
	})
}
