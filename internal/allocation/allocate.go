package allocation

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
	"github.com/imamik/fleetalloc/internal/util/naming"
	"github.com/imamik/fleetalloc/internal/util/retry"
)

var errNotAssociated = errors.New("floating IP not associated yet")

// AllocatedInstance describes one instance that reached a terminal ready state.
type AllocatedInstance struct {
	LogicalID  string   `json:"logicalId" yaml:"logicalId"`
	InstanceID string   `json:"instanceId" yaml:"instanceId"`
	Name       string   `json:"name" yaml:"name"`
	FloatingIP string   `json:"floatingIp,omitempty" yaml:"floatingIp,omitempty"`
	VolumeIDs  []string `json:"volumeIds,omitempty" yaml:"volumeIds,omitempty"`
}

// Result is the outcome of Allocate.
type Result struct {
	// Instances are the ready instances in request order.
	Instances []AllocatedInstance `json:"instances" yaml:"instances"`
	// RolledBack lists the logical IDs whose resources were released.
	RolledBack []string `json:"rolledBack,omitempty" yaml:"rolledBack,omitempty"`
}

// LogicalIDs returns the logical IDs of the ready instances.
func (r *Result) LogicalIDs() []string {
	out := make([]string, 0, len(r.Instances))
	for _, inst := range r.Instances {
		out = append(out, inst.LogicalID)
	}
	return out
}

// Allocate creates one instance per logical ID from tmpl and returns the ones
// that became ready. Instances that fail a step are released. When fewer than
// minCount instances are ready every instance is released and an
// *UnrecoverableError is returned.
//
// If the threshold is met but conditions were recorded along the way, the
// result is returned together with an *UnrecoverableError.
func (o *Orchestrator) Allocate(ctx context.Context, tmpl config.Template, logicalIDs []string, minCount int) (*Result, error) {
	ids := dedupe(logicalIDs)
	conds := NewConditions(o.metrics)

	if len(ids) == 0 {
		o.metrics.recordAllocation(ResultPrecondition)
		return nil, unrecoverable(nil, conds, "no logical instance IDs requested")
	}
	if len(ids) < minCount {
		o.metrics.recordAllocation(ResultPrecondition)
		return nil, unrecoverable(nil, conds, "requested %d instances but minimum count is %d", len(ids), minCount)
	}
	if err := o.checkPreconditions(ctx, tmpl); err != nil {
		o.metrics.recordAllocation(ResultPrecondition)
		return nil, unrecoverable(err, conds, "precondition failed")
	}

	log := o.log.WithValues("minCount", minCount)
	log.Info("allocating instances", "logicalIDs", ids)

	// Start from a clean slate so a retried call never double-provisions.
	o.releaser.Release(ctx, releaseRequestFor(tmpl, ids, nil), conds)

	a := newArena(ids)
	if err := o.createInstances(ctx, tmpl, a, conds); err != nil {
		o.metrics.recordAllocation(ResultConditions)
		return nil, unrecoverable(err, conds, "problem allocating instances")
	}

	o.waitForNetwork(ctx, tmpl, a, conds)

	var strays []string
	if tmpl.HasFloatingIP() {
		strays = o.assignFloatingIPs(ctx, tmpl, a, conds)
	}

	if err := o.enforceThreshold(ctx, tmpl, a, minCount, reasonNetwork, strays, conds); err != nil {
		return nil, err
	}

	if tmpl.VolumesInPlay() && a.count(stateReady) > 0 {
		o.attachVolumes(ctx, tmpl, a, conds)
		if err := o.enforceThreshold(ctx, tmpl, a, minCount, reasonVolume, nil, conds); err != nil {
			return nil, err
		}
	}

	result := &Result{}
	for _, r := range a.records {
		switch r.state {
		case stateReady, stateAttached:
			inst := AllocatedInstance{
				LogicalID:  r.logicalID,
				InstanceID: r.instanceID,
				Name:       r.name,
				VolumeIDs:  r.volumeIDs,
			}
			if r.floatingIP != nil {
				inst.FloatingIP = r.floatingIP.Address
			}
			result.Instances = append(result.Instances, inst)
		case stateRolledBack:
			result.RolledBack = append(result.RolledBack, r.logicalID)
		}
	}

	if conds.Len() > 0 {
		o.metrics.recordAllocation(ResultConditions)
		log.Info("allocation finished with conditions", "ready", len(result.Instances), "conditions", conds.Len())
		return result, unrecoverable(nil, conds, "problem allocating instances")
	}

	o.metrics.recordAllocation(ResultSuccess)
	log.Info("allocation finished", "ready", len(result.Instances), "rolledBack", len(result.RolledBack))
	return result, nil
}

// checkPreconditions verifies optional APIs before anything is mutated.
func (o *Orchestrator) checkPreconditions(ctx context.Context, tmpl config.Template) error {
	if !tmpl.VolumesInPlay() && !tmpl.HasFloatingIP() {
		return nil
	}

	caps, err := o.cp.Capabilities(ctx)
	if err != nil {
		return fmt.Errorf("failed to query capabilities: %w", err)
	}
	if tmpl.VolumesInPlay() && !caps.VolumeAttach {
		return fmt.Errorf("volume attachment: %w", cloud.ErrCapabilityMissing)
	}
	if !tmpl.HasFloatingIP() {
		return nil
	}
	if !caps.FloatingIP {
		return fmt.Errorf("floating IPs: %w", cloud.ErrCapabilityMissing)
	}

	pools, err := o.cp.ListFloatingIPPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list floating IP pools: %w", err)
	}
	if !slices.Contains(pools, tmpl.FloatingIPPool) {
		return fmt.Errorf("floating IP pool %q does not exist", tmpl.FloatingIPPool)
	}
	return nil
}

func (o *Orchestrator) createInstances(ctx context.Context, tmpl config.Template, a *arena, conds *Conditions) error {
	ids := logicalIDs(a.records)
	var existing map[string]string
	err := o.withRetry(ctx, func() error {
		var err error
		existing, err = o.resolver.Resolve(ctx, ids)
		return err
	})
	if err != nil {
		conds.Add("instance.resolve", ResourceInstance, "", err)
		return err
	}

	sgs := tmpl.SecurityGroupNames()
	for _, r := range a.records {
		r.name = naming.Instance(tmpl.InstanceNamePrefix, r.logicalID)

		if pid, ok := existing[r.logicalID]; ok {
			// Release could not remove it; never adopt a half-deleted instance.
			r.instanceID = pid
			r.fail(reasonCreate)
			conds.Warn("instance.exists", ResourceInstance, pid, "instance still present after release")
			continue
		}

		tags := labels.NewLabelBuilder(r.logicalID).
			Merge(tmpl.Tags).
			WithInstanceName(r.name).
			WithVolumes(tmpl.VolumeNumber, tmpl.VolumeSize).
			Build()

		pid, err := o.cp.CreateInstance(ctx, cloud.CreateInstanceOpts{
			Name:           r.name,
			Image:          tmpl.Image,
			Flavor:         tmpl.Flavor,
			Network:        tmpl.Network,
			Zone:           tmpl.AvailabilityZone,
			KeyName:        tmpl.KeyName,
			SecurityGroups: sgs,
			Tags:           tags,
			Database:       databaseOpts(tmpl.Database),
		})
		if err != nil {
			o.log.Info("failed to create instance", "logicalID", r.logicalID, "error", err.Error())
			conds.Add("instance.create", ResourceInstance, r.logicalID, err)
			r.fail(reasonCreate)
			continue
		}
		r.instanceID = pid
		o.log.Info("created instance", "logicalID", r.logicalID, "instanceID", pid, "name", r.name)
	}
	return nil
}

func databaseOpts(db *config.DatabaseTemplate) *cloud.DatabaseOpts {
	if db == nil {
		return nil
	}
	return &cloud.DatabaseOpts{
		Datastore:  db.Datastore,
		Version:    db.Version,
		VolumeSize: db.VolumeSize,
		Username:   db.Username,
		Password:   db.Password,
	}
}

// waitForNetwork polls every not-ready instance until it has an address,
// under one deadline shared by the whole batch. Database instances must
// also be running, and get the longer DatabaseActive deadline.
func (o *Orchestrator) waitForNetwork(ctx context.Context, tmpl config.Template, a *arena, conds *Conditions) {
	if a.count(stateNotReady) == 0 {
		return
	}

	timeout := o.timeouts.NetworkWait
	if tmpl.IsDatabase() {
		timeout = o.timeouts.DatabaseActive
	}
	o.log.Info("waiting for instance addresses", "pending", a.count(stateNotReady),
		"timeout", timeout.String())

	o.poller.Until(ctx, PollNetwork, "", timeout, conds, func(ctx context.Context) (bool, error) {
		var errs []error
		for _, r := range a.in(stateNotReady) {
			inst, err := o.cp.GetInstance(ctx, r.instanceID)
			switch {
			case cloud.IsNotFound(err):
				// Not visible yet.
			case err != nil:
				errs = append(errs, fmt.Errorf("instance %s: %w", r.instanceID, err))
			case inst.Status == cloud.StatusFailed:
				o.log.Info("instance failed while waiting for an address", "logicalID", r.logicalID,
					"instanceID", r.instanceID, "providerStatus", inst.ProviderStatus)
				r.fail(reasonNetwork)
			case tmpl.IsDatabase() && inst.Status != cloud.StatusRunning:
				// Database addresses are only usable once the datastore is up.
			case inst.HasAddress():
				o.log.Info("instance got an address", "logicalID", r.logicalID, "instanceID", r.instanceID,
					"address", inst.Addresses[0])
				r.state = stateReady
			}
		}
		return a.count(stateNotReady) == 0, errors.Join(errs...)
	})
}

// assignFloatingIPs gives every ready instance a floating IP. It returns the
// IPs that were allocated but could not be associated.
func (o *Orchestrator) assignFloatingIPs(ctx context.Context, tmpl config.Template, a *arena, conds *Conditions) []string {
	var strays []string
	for _, r := range a.in(stateReady) {
		fip, err := o.cp.AllocateFloatingIP(ctx, tmpl.FloatingIPPool)
		if err != nil {
			o.log.Info("failed to allocate floating IP", "logicalID", r.logicalID, "error", err.Error())
			conds.Add("floating-ip.allocate", ResourceFloatingIP, r.logicalID, err)
			r.demote(reasonFloatingIP)
			continue
		}

		if err := o.associate(ctx, fip, r.instanceID); err != nil {
			o.log.Info("failed to associate floating IP", "logicalID", r.logicalID, "instanceID", r.instanceID,
				"floatingIP", fip.Address, "error", err.Error())
			if !errors.Is(err, errNotAssociated) {
				conds.Add("floating-ip.associate", ResourceFloatingIP, fip.ID, err)
			}
			strays = append(strays, fip.ID)
			r.demote(reasonFloatingIP)
			continue
		}

		fip.InstanceID = r.instanceID
		r.floatingIP = fip
		o.log.Info("associated floating IP", "logicalID", r.logicalID, "instanceID", r.instanceID,
			"floatingIP", fip.Address)
	}
	return strays
}

// associate retries the association a fixed number of times at the poll
// interval, confirming each attempt through the floating IP listing. It
// returns the error of the final attempt.
func (o *Orchestrator) associate(ctx context.Context, fip *cloud.FloatingIP, instanceID string) error {
	start := o.clock.Now()
	var lastErr error
	err := retry.WithExponentialBackoff(ctx, func() error {
		lastErr = o.tryAssociate(ctx, fip, instanceID)
		return lastErr
	},
		retry.WithMaxRetries(o.timeouts.FloatingIPAttempts-1),
		retry.WithInitialDelay(o.timeouts.PollInterval),
		retry.WithMaxDelay(o.timeouts.PollInterval),
		retry.WithMultiplier(1),
		retry.WithClock(o.clock),
	)

	result := "matched"
	if err != nil {
		result = "timeout"
	}
	o.metrics.recordPoll(PollFloatingIP, result, o.clock.Now().Sub(start))

	if err == nil {
		return nil
	}
	if ctx.Err() != nil || lastErr == nil {
		return err
	}
	return lastErr
}

func (o *Orchestrator) tryAssociate(ctx context.Context, fip *cloud.FloatingIP, instanceID string) error {
	if err := o.cp.AssociateFloatingIP(ctx, fip.Address, instanceID); err != nil {
		return err
	}
	fips, err := o.cp.ListFloatingIPs(ctx)
	if err != nil {
		return err
	}
	for _, f := range fips {
		if f.ID == fip.ID && f.InstanceID == instanceID {
			return nil
		}
	}
	return errNotAssociated
}

// enforceThreshold rolls back every not-ready instance. When fewer than
// minCount instances remain ready it rolls back the whole batch instead and
// returns an *UnrecoverableError.
func (o *Orchestrator) enforceThreshold(ctx context.Context, tmpl config.Template, a *arena, minCount int,
	reason string, strays []string, conds *Conditions) error {
	a.failNotReady(reason)
	failed := a.in(stateFailed)
	ready := a.count(stateReady, stateAttached)

	if ready < minCount {
		o.log.Info("too few instances ready, rolling back the batch", "ready", ready, "minCount", minCount,
			"requested", len(a.records))
		o.releaser.Release(ctx, releaseRequestFor(tmpl, logicalIDs(a.records), strays), conds)
		for _, r := range a.records {
			if r.state == stateRolledBack {
				continue
			}
			if r.state == stateFailed {
				o.metrics.recordRollback(r.reason, 1)
			} else {
				o.metrics.recordRollback(reasonThreshold, 1)
			}
			r.state = stateRolledBack
		}
		o.metrics.recordAllocation(ResultThreshold)
		return unrecoverable(nil, conds, "only %d of %d instances ready, minimum count is %d",
			ready, len(a.records), minCount)
	}

	if len(failed) == 0 && len(strays) == 0 {
		return nil
	}

	o.log.Info("rolling back failed instances", "logicalIDs", logicalIDs(failed), "strayFloatingIPs", len(strays))
	o.releaser.Release(ctx, releaseRequestFor(tmpl, logicalIDs(failed), strays), conds)
	for _, r := range failed {
		o.metrics.recordRollback(r.reason, 1)
		r.state = stateRolledBack
	}
	return nil
}

// attachVolumes waits for every ready instance to be running, creates all
// volumes up front and then attaches them instance by instance.
func (o *Orchestrator) attachVolumes(ctx context.Context, tmpl config.Template, a *arena, conds *Conditions) {
	for _, r := range a.in(stateReady) {
		if !o.poller.WaitForInstanceStatus(ctx, r.instanceID, cloud.StatusRunning, o.timeouts.InstanceActive, conds) {
			o.log.Info("instance did not become active", "logicalID", r.logicalID, "instanceID", r.instanceID)
			r.demote(reasonActive)
		}
	}

	ready := a.in(stateReady)
	o.log.Info("creating volumes", "instances", len(ready), "perInstance", tmpl.VolumeNumber,
		"sizeGB", tmpl.VolumeSize)

	for _, r := range ready {
		for i := 1; i <= tmpl.VolumeNumber; i++ {
			vid, err := o.createVolume(ctx, tmpl, r, i)
			if err != nil {
				conds.Add("volume.create", ResourceVolume, naming.Volume(r.name, i), err)
				r.demote(reasonVolume)
				break
			}
			r.volumeIDs = append(r.volumeIDs, vid)
		}
	}

	for _, r := range a.in(stateReady) {
		attached := true
		for i, vid := range r.volumeIDs {
			var ok bool
			r.volumeIDs[i], ok = o.attachVolume(ctx, tmpl, r, i+1, vid, conds)
			if !ok {
				attached = false
				break
			}
		}
		if !attached {
			r.demote(reasonVolume)
			continue
		}
		r.state = stateAttached
		o.log.Info("attached volumes", "logicalID", r.logicalID, "instanceID", r.instanceID, "volumeIDs", r.volumeIDs)
	}
}

func (o *Orchestrator) createVolume(ctx context.Context, tmpl config.Template, r *record, index int) (string, error) {
	name := naming.Volume(r.name, index)
	tags := labels.NewLabelBuilder(r.logicalID).
		Merge(tmpl.Tags).
		WithInstanceName(r.name).
		WithVolumes(tmpl.VolumeNumber, tmpl.VolumeSize).
		Build()

	vid, err := o.cp.CreateVolume(ctx, cloud.CreateVolumeOpts{
		Name: name,
		Size: tmpl.VolumeSize,
		Zone: tmpl.AvailabilityZone,
		Tags: tags,
	})
	if err != nil {
		return "", err
	}
	o.log.V(1).Info("created volume", "logicalID", r.logicalID, "volumeID", vid, "name", name)
	return vid, nil
}

// attachVolume brings one volume from creation to IN_USE on r's instance.
// A volume that never becomes available is discarded and created once more.
// It returns the ID of the volume it ended up with.
func (o *Orchestrator) attachVolume(ctx context.Context, tmpl config.Template, r *record, index int, vid string,
	conds *Conditions) (string, bool) {
	if !o.waitVolumeAvailable(ctx, vid, conds) {
		o.log.Info("volume did not become available, re-creating", "logicalID", r.logicalID, "volumeID", vid)
		o.discardVolume(ctx, vid, conds)

		newID, err := o.createVolume(ctx, tmpl, r, index)
		if err != nil {
			conds.Add("volume.create", ResourceVolume, naming.Volume(r.name, index), err)
			return vid, false
		}
		vid = newID
		if !o.waitVolumeAvailable(ctx, vid, conds) {
			o.log.Info("volume did not become available", "logicalID", r.logicalID, "volumeID", vid)
			o.discardVolume(ctx, vid, conds)
			return vid, false
		}
	}

	if err := o.cp.AttachVolume(ctx, vid, r.instanceID); err != nil {
		o.log.Info("failed to attach volume", "volumeID", vid, "instanceID", r.instanceID, "error", err.Error())
		conds.Add("volume.attach", ResourceVolume, vid, err)
		o.discardVolume(ctx, vid, conds)
		return vid, false
	}

	if _, ok := o.poller.WaitForVolumeStatus(ctx, vid, o.timeouts.VolumeStatus, conds, cloud.VolumeInUse); !ok {
		o.log.Info("volume did not become in-use", "volumeID", vid, "instanceID", r.instanceID)
		o.discardVolume(ctx, vid, conds)
		return vid, false
	}
	return vid, true
}

func (o *Orchestrator) waitVolumeAvailable(ctx context.Context, vid string, conds *Conditions) bool {
	vol, ok := o.poller.WaitForVolumeStatus(ctx, vid, o.timeouts.VolumeStatus, conds,
		cloud.VolumeAvailable, cloud.VolumeError)
	return ok && vol.Status == cloud.VolumeAvailable
}

// discardVolume deletes a failed volume when the control plane allows it.
// Volumes still attached or attaching are left for the release of their
// instance.
func (o *Orchestrator) discardVolume(ctx context.Context, vid string, conds *Conditions) {
	vol, err := o.cp.GetVolume(ctx, vid)
	if cloud.IsNotFound(err) {
		return
	}
	if err != nil {
		conds.Add("volume.get", ResourceVolume, vid, err)
		return
	}
	if !deletable(vol.Status) {
		o.log.V(1).Info("volume left for release", "volumeID", vid, "status", string(vol.Status))
		return
	}
	err = o.cp.DeleteVolume(ctx, vid)
	o.metrics.recordRelease(ResourceVolume, err)
	if err != nil {
		conds.Add("volume.delete", ResourceVolume, vid, err)
	}
}
