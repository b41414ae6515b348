package allocation

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// Resolver maps logical instance IDs to provider instance IDs by scanning
// the full instance listing for a matching tag. Every call lists once;
// there is no cache.
type Resolver struct {
	instances cloud.InstanceManager
	log       logr.Logger
}

// NewResolver creates a resolver over the given instance manager.
func NewResolver(instances cloud.InstanceManager, log logr.Logger) *Resolver {
	return &Resolver{instances: instances, log: log}
}

// Resolve returns the provider ID for every logical ID that has an instance.
// Logical IDs with no instance are absent from the result. When several
// instances carry the same logical ID the first one listed wins.
func (r *Resolver) Resolve(ctx context.Context, logicalIDs []string) (map[string]string, error) {
	all, err := r.ResolveAll(ctx, logicalIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(all))
	for id, pids := range all {
		out[id] = pids[0]
	}
	return out, nil
}

// ResolveAll is like Resolve but returns every instance tagged with each
// logical ID, in listing order.
func (r *Resolver) ResolveAll(ctx context.Context, logicalIDs []string) (map[string][]string, error) {
	out := make(map[string][]string)
	if len(logicalIDs) == 0 {
		return out, nil
	}

	wanted := toSet(logicalIDs)
	instances, err := r.instances.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	for _, inst := range instances {
		id, ok := labels.LogicalID(inst.Tags)
		if !ok {
			continue
		}
		if _, want := wanted[id]; !want {
			continue
		}
		out[id] = append(out[id], inst.ID)
	}

	for id, pids := range out {
		if len(pids) > 1 {
			r.log.Info("multiple instances share a logical ID", "logicalID", id, "instanceIDs", pids)
		}
	}
	return out, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// dedupe drops repeated IDs while keeping the first occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
