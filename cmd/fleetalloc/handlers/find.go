package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/imamik/fleetalloc/internal/allocation"
	"github.com/imamik/fleetalloc/internal/cloud"
)

type foundView struct {
	LogicalID  string            `json:"logicalId" yaml:"logicalId"`
	InstanceID string            `json:"instanceId" yaml:"instanceId"`
	Name       string            `json:"name" yaml:"name"`
	Status     cloud.Status      `json:"status" yaml:"status"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

// Find handles the find command. Only logical IDs with an existing instance
// are printed.
func Find(ctx context.Context, opts Options, logicalIDs []string) (err error) {
	e, err := newEnv(opts)
	if err != nil {
		return err
	}
	defer func() { err = e.finish(err) }()

	found, err := e.orch.Find(ctx, e.cfg.Template, logicalIDs)
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}
	return printFound(opts.Output, found)
}

func printFound(format string, found []*allocation.FoundInstance) error {
	views := make([]foundView, 0, len(found))
	for _, f := range found {
		views = append(views, foundView{
			LogicalID:  f.LogicalID,
			InstanceID: f.ID,
			Name:       f.Name,
			Status:     f.Status,
			Properties: f.Properties(),
		})
	}

	return render(stdout, format, views, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "LOGICAL ID\tINSTANCE ID\tNAME\tSTATUS\tPROPERTIES")
		for _, v := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.LogicalID, v.InstanceID, v.Name, v.Status, formatProps(v.Properties))
		}
	})
}

func formatProps(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+props[k])
	}
	return dash(strings.Join(pairs, " "))
}
