package allocation

import (
	"context"
	"slices"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// ReleaseRequest names what to release.
type ReleaseRequest struct {
	VolumeNumber   int
	VolumeSize     int
	FloatingIPPool string
	LogicalIDs     []string
	// ExtraFloatingIPs are IPs allocated but never associated.
	ExtraFloatingIPs []string
}

func releaseRequestFor(tmpl config.Template, ids, extraIPs []string) ReleaseRequest {
	return ReleaseRequest{
		VolumeNumber:     tmpl.VolumeNumber,
		VolumeSize:       tmpl.VolumeSize,
		FloatingIPPool:   tmpl.FloatingIPPool,
		LogicalIDs:       ids,
		ExtraFloatingIPs: extraIPs,
	}
}

// Releaser deletes every floating IP, instance and volume tied to a set of
// logical IDs. It is safe to call on IDs that were never realized.
type Releaser struct {
	cp       cloud.ControlPlane
	resolver *Resolver
	poller   *Poller
	timeouts *config.Timeouts
	log      logr.Logger
	metrics  *Metrics

	withRetry func(context.Context, func() error) error
}

// Release runs the release in dependency order: floating IPs, instances,
// instance deletion confirmation, volumes. Failures are recorded in conds
// and never stop the remaining work.
func (r *Releaser) Release(ctx context.Context, req ReleaseRequest, conds *Conditions) {
	ids := dedupe(req.LogicalIDs)

	var resolved map[string][]string
	err := r.withRetry(ctx, func() error {
		var err error
		resolved, err = r.resolver.ResolveAll(ctx, ids)
		return err
	})
	if err != nil {
		conds.Add("release.resolve", ResourceInstance, "", err)
		resolved = map[string][]string{}
	}
	var instanceIDs []string
	for _, id := range ids {
		instanceIDs = append(instanceIDs, resolved[id]...)
	}

	r.releaseFloatingIPs(ctx, req, instanceIDs, conds)

	if len(ids) == 0 {
		return
	}

	r.log.Info("releasing instances", "logicalIDs", ids, "resolved", len(instanceIDs))

	var deleted []string
	for _, pid := range instanceIDs {
		err := r.cp.DeleteInstance(ctx, pid)
		r.metrics.recordRelease(ResourceInstance, err)
		if err != nil {
			r.log.Info("failed to delete instance", "instanceID", pid, "error", err.Error())
			conds.Add("instance.delete", ResourceInstance, pid, err)
			continue
		}
		deleted = append(deleted, pid)
	}

	for _, pid := range deleted {
		if !r.poller.WaitForInstanceDeleted(ctx, pid, r.timeouts.InstanceDelete, conds) {
			r.log.Info("instance deletion not confirmed", "instanceID", pid, "timeout", r.timeouts.InstanceDelete.String())
			conds.Warn("instance.delete.timeout", ResourceInstance, pid, "deletion not confirmed before timeout")
		}
	}

	if req.VolumeNumber > 0 && req.VolumeSize > 0 {
		r.releaseVolumes(ctx, ids, conds)
	}
}

func (r *Releaser) releaseFloatingIPs(ctx context.Context, req ReleaseRequest, instanceIDs []string, conds *Conditions) {
	var targets []string
	if req.FloatingIPPool != "" && len(instanceIDs) > 0 {
		fips, err := r.cp.ListFloatingIPs(ctx)
		if err != nil {
			conds.Add("floating-ip.list", ResourceFloatingIP, "", err)
		}
		for _, fip := range fips {
			if fip.InstanceID != "" && slices.Contains(instanceIDs, fip.InstanceID) {
				targets = append(targets, fip.ID)
			}
		}
	}
	for _, id := range req.ExtraFloatingIPs {
		if !slices.Contains(targets, id) {
			targets = append(targets, id)
		}
	}

	for _, id := range targets {
		err := r.cp.DeleteFloatingIP(ctx, id)
		r.metrics.recordRelease(ResourceFloatingIP, err)
		if err != nil {
			r.log.Info("failed to delete floating IP", "floatingIPID", id, "error", err.Error())
			conds.Add("floating-ip.delete", ResourceFloatingIP, id, err)
			continue
		}
		r.log.V(1).Info("deleted floating IP", "floatingIPID", id)
	}
}

// releaseVolumes deletes every volume tagged with one of ids.
//
//   - AVAILABLE and ERROR volumes are deleted right away.
//   - DELETING volumes are only waited on.
//   - ERROR_DELETING volumes are left alone and reported as leaked.
//   - Anything else gets one bounded wait to settle first.
func (r *Releaser) releaseVolumes(ctx context.Context, ids []string, conds *Conditions) {
	vols, err := r.cp.ListVolumes(ctx)
	if err != nil {
		conds.Add("volume.list", ResourceVolume, "", err)
		return
	}

	wanted := toSet(ids)
	var awaiting []string
	for _, vol := range vols {
		id, ok := labels.LogicalID(vol.Tags)
		if !ok {
			continue
		}
		if _, want := wanted[id]; !want {
			continue
		}

		status := vol.Status
		if !deletable(status) && status != cloud.VolumeDeleting && status != cloud.VolumeErrorDeleting {
			settled, ok := r.poller.WaitForVolumeStatus(ctx, vol.ID, r.timeouts.VolumeStatus, conds,
				cloud.VolumeAvailable, cloud.VolumeError, cloud.VolumeDeleting, cloud.VolumeErrorDeleting)
			if !ok {
				r.leak(vol.ID, string(status), conds)
				continue
			}
			status = settled.Status
		}

		switch {
		case status == cloud.VolumeErrorDeleting:
			r.leak(vol.ID, string(status), conds)
		case status == cloud.VolumeDeleting:
			awaiting = append(awaiting, vol.ID)
		case deletable(status):
			err := r.cp.DeleteVolume(ctx, vol.ID)
			r.metrics.recordRelease(ResourceVolume, err)
			if err != nil {
				r.log.Info("failed to delete volume", "volumeID", vol.ID, "error", err.Error())
				conds.Add("volume.delete", ResourceVolume, vol.ID, err)
				continue
			}
			awaiting = append(awaiting, vol.ID)
		}
	}

	for _, id := range awaiting {
		if !r.poller.WaitForVolumeDeleted(ctx, id, r.timeouts.VolumeDelete, conds) {
			r.log.Info("volume deletion not confirmed", "volumeID", id, "timeout", r.timeouts.VolumeDelete.String())
			conds.Warn("volume.delete.timeout", ResourceVolume, id, "deletion not confirmed before timeout")
		}
	}
}

func (r *Releaser) leak(volumeID, status string, conds *Conditions) {
	r.log.Info("leaving volume in place", "volumeID", volumeID, "status", status)
	r.metrics.recordLeak(ResourceVolume)
	conds.Warn("volume.leaked", ResourceVolume, volumeID, "volume cannot be deleted in status "+status)
}

func deletable(s cloud.VolumeStatus) bool {
	return s == cloud.VolumeAvailable || s == cloud.VolumeError
}
