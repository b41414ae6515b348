// Package fake provides an in-memory, eventually consistent control plane.
//
// Every mutation takes effect only after the affected resource has been
// read a few times, which mimics a remote service where calls return before
// their effect is durable. Behavior can be scripted per logical ID.
package fake

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// Behavior scripts how resources tagged with one logical ID evolve.
type Behavior struct {
	// CreateErr is returned by CreateInstance.
	CreateErr error
	// NoAddress keeps the instance without an address forever.
	NoAddress bool
	// FailBoot moves the instance to FAILED instead of RUNNING.
	FailBoot bool
	// NeverRunning gives the instance an address but keeps it PENDING.
	NeverRunning bool
	// StuckDeleting keeps a deleted instance around in DELETED-pending state.
	StuckDeleting bool
	// VolumeErrors is the number of volume creations that end in ERROR.
	VolumeErrors int
	// AttachStuck keeps attached volumes in ATTACHING.
	AttachStuck bool
	// AttachErr is returned by AttachVolume.
	AttachErr error
	// AssociateFails silently drops floating IP associations.
	AssociateFails bool
	// AssociateErr is returned by AssociateFloatingIP.
	AssociateErr error
	// VolumeErrorDeleting moves deleted volumes to ERROR_DELETING.
	VolumeErrorDeleting bool
}

type instance struct {
	cloud.Instance
	database  *cloud.DatabaseOpts
	logicalID string
	reads     int
	deleting  bool
}

type volume struct {
	cloud.Volume
	logicalID string
	reads     int
	attaching bool
	deleting  bool
	broken    bool
}

// ControlPlane is an in-memory cloud.ControlPlane and cloud.Inspector.
type ControlPlane struct {
	mu sync.Mutex

	// Settle is the number of reads before a pending transition completes.
	Settle int

	caps       cloud.Capabilities
	pools      []string
	zones      []string
	images     []string
	keyPairs   []string
	secGroups  []string
	flavors    []string
	datastores []string
	behaviors  map[string]Behavior
	errs       map[string]error
	instances  map[string]*instance
	volumes    map[string]*volume
	fips       map[string]*cloud.FloatingIP
	fipOwners  map[string]string
	volErrUsed map[string]int
	order      []string
	seq        int
	calls      []string
}

// New returns an empty control plane with every capability present and a
// single floating IP pool named "public".
func New() *ControlPlane {
	return &ControlPlane{
		Settle:     1,
		caps:       cloud.Capabilities{VolumeAttach: true, FloatingIP: true},
		pools:      []string{"public"},
		zones:      []string{"nova"},
		images:     []string{"centos-7"},
		keyPairs:   []string{"director"},
		secGroups:  []string{"default"},
		flavors:    []string{"m1.small", "db.small"},
		datastores: []string{"mysql-5.7"},
		behaviors:  map[string]Behavior{},
		errs:       map[string]error{},
		instances:  map[string]*instance{},
		volumes:    map[string]*volume{},
		fips:       map[string]*cloud.FloatingIP{},
		fipOwners:  map[string]string{},
		volErrUsed: map[string]int{},
	}
}

// SetBehavior scripts resources tagged with logicalID.
func (c *ControlPlane) SetBehavior(logicalID string, b Behavior) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.behaviors[logicalID] = b
}

// SetCapabilities replaces the reported capabilities.
func (c *ControlPlane) SetCapabilities(caps cloud.Capabilities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caps = caps
}

// SetPools replaces the floating IP pools.
func (c *ControlPlane) SetPools(pools ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = pools
}

// SetError makes every call to method fail with err. A nil err clears it.
func (c *ControlPlane) SetError(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// Calls returns the mutating calls made so far, e.g. "DeleteInstance i-1".
func (c *ControlPlane) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// CallsTo returns the recorded calls for one method.
func (c *ControlPlane) CallsTo(method string) []string {
	var out []string
	for _, call := range c.Calls() {
		if call == method || len(call) > len(method) && call[:len(method)+1] == method+" " {
			out = append(out, call)
		}
	}
	return out
}

func (c *ControlPlane) record(format string, args ...any) {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *ControlPlane) fail(method string) error {
	return c.errs[method]
}

func (c *ControlPlane) nextID(prefix string) string {
	c.seq++
	return fmt.Sprintf("%s-%d", prefix, c.seq)
}

// PutInstance inserts an instance directly, bypassing eventual consistency.
func (c *ControlPlane) PutInstance(inst cloud.Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _ := labels.LogicalID(inst.Tags)
	c.instances[inst.ID] = &instance{Instance: inst, logicalID: id}
	c.order = append(c.order, inst.ID)
}

// RemoveInstance deletes an instance out of band.
func (c *ControlPlane) RemoveInstance(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeInstance(id)
}

// InstancesFor returns the IDs of live instances tagged with logicalID.
func (c *ControlPlane) InstancesFor(logicalID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, id := range c.order {
		if inst, ok := c.instances[id]; ok && inst.logicalID == logicalID {
			out = append(out, id)
		}
	}
	return out
}

// DatabaseFor returns the database options the live instance tagged with
// logicalID was created with, or nil.
func (c *ControlPlane) DatabaseFor(logicalID string) *cloud.DatabaseOpts {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.order {
		if inst := c.instances[id]; inst.logicalID == logicalID && inst.database != nil {
			db := *inst.database
			return &db
		}
	}
	return nil
}

// VolumesFor returns the IDs of volumes tagged with logicalID, leaving out
// volumes whose deletion is in progress.
func (c *ControlPlane) VolumesFor(logicalID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, id := range slices.Sorted(maps.Keys(c.volumes)) {
		vol := c.volumes[id]
		if vol.deleting && vol.Status == cloud.VolumeDeleting {
			continue
		}
		if vol.logicalID == logicalID {
			out = append(out, id)
		}
	}
	return out
}

// PutVolume inserts a volume directly. A volume in DELETING status completes
// its deletion after Settle reads.
func (c *ControlPlane) PutVolume(vol cloud.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, _ := labels.LogicalID(vol.Tags)
	c.volumes[vol.ID] = &volume{Volume: vol, logicalID: id, deleting: vol.Status == cloud.VolumeDeleting}
}

// HasVolume reports whether the volume still exists in any status.
func (c *ControlPlane) HasVolume(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.volumes[id]
	return ok
}

// FloatingIPsFor returns the IDs of live floating IPs that were offered to,
// or are associated with, an instance tagged with logicalID.
func (c *ControlPlane) FloatingIPsFor(logicalID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, id := range slices.Sorted(maps.Keys(c.fips)) {
		owner := c.fipOwners[id]
		if inst, ok := c.instances[c.fips[id].InstanceID]; ok {
			owner = inst.logicalID
		}
		if owner == logicalID {
			out = append(out, id)
		}
	}
	return out
}

// FloatingIPCount returns the number of allocated floating IPs.
func (c *ControlPlane) FloatingIPCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fips)
}

// CreateInstance implements cloud.InstanceManager.
func (c *ControlPlane) CreateInstance(_ context.Context, opts cloud.CreateInstanceOpts) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logicalID, _ := labels.LogicalID(opts.Tags)
	c.record("CreateInstance %s", logicalID)
	if err := c.fail("CreateInstance"); err != nil {
		return "", err
	}
	if b := c.behaviors[logicalID]; b.CreateErr != nil {
		return "", b.CreateErr
	}

	id := c.nextID("i")
	c.instances[id] = &instance{
		Instance: cloud.Instance{
			ID:             id,
			Name:           opts.Name,
			Status:         cloud.StatusPending,
			ProviderStatus: "BUILD",
			ImageID:        opts.Image,
			Flavor:         opts.Flavor,
			KeyName:        opts.KeyName,
			NetworkID:      opts.Network,
			Zone:           opts.Zone,
			Tags:           maps.Clone(opts.Tags),
		},
		logicalID: logicalID,
	}
	if opts.Database != nil {
		db := *opts.Database
		c.instances[id].database = &db
	}
	c.order = append(c.order, id)
	return id, nil
}

// GetInstance implements cloud.InstanceManager. Each read advances the
// instance towards its next state.
func (c *ControlPlane) GetInstance(_ context.Context, id string) (*cloud.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("GetInstance"); err != nil {
		return nil, err
	}
	inst, ok := c.instances[id]
	if !ok {
		return nil, cloud.NotFoundError("instance", id)
	}

	inst.reads++
	b := c.behaviors[inst.logicalID]
	if inst.reads >= c.Settle {
		switch {
		case inst.deleting && b.StuckDeleting:
		case inst.deleting:
			c.removeInstance(id)
			return nil, cloud.NotFoundError("instance", id)
		case inst.Status == cloud.StatusPending && b.FailBoot:
			inst.Status, inst.ProviderStatus = cloud.StatusFailed, "ERROR"
		case inst.Status == cloud.StatusPending && !b.NoAddress:
			if len(inst.Addresses) == 0 {
				inst.Addresses = []string{fmt.Sprintf("10.0.0.%d", len(c.order)+1)}
			}
			if !b.NeverRunning {
				inst.Status, inst.ProviderStatus = cloud.StatusRunning, "ACTIVE"
			}
		}
	}

	return c.instanceView(inst), nil
}

func (c *ControlPlane) instanceView(inst *instance) *cloud.Instance {
	out := inst.Instance
	out.Addresses = slices.Clone(inst.Addresses)
	out.Tags = maps.Clone(inst.Tags)
	for _, fip := range c.fips {
		if fip.InstanceID == inst.ID {
			out.FloatingIP = fip.Address
			out.Addresses = append(out.Addresses, fip.Address)
		}
	}
	return &out
}

// DeleteInstance implements cloud.InstanceManager.
func (c *ControlPlane) DeleteInstance(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("DeleteInstance %s", id)
	if err := c.fail("DeleteInstance"); err != nil {
		return err
	}
	if inst, ok := c.instances[id]; ok {
		inst.deleting = true
		inst.reads = 0
	}
	return nil
}

func (c *ControlPlane) removeInstance(id string) {
	delete(c.instances, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	for _, fip := range c.fips {
		if fip.InstanceID == id {
			fip.InstanceID = ""
		}
	}
	for _, vol := range c.volumes {
		if vol.InstanceID == id {
			vol.InstanceID = ""
			vol.attaching = false
			vol.Status, vol.ProviderStatus = cloud.VolumeAvailable, "available"
		}
	}
}

// ListInstances implements cloud.InstanceManager.
func (c *ControlPlane) ListInstances(_ context.Context) ([]*cloud.Instance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListInstances"); err != nil {
		return nil, err
	}
	out := make([]*cloud.Instance, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.instanceView(c.instances[id]))
	}
	return out, nil
}

// CreateVolume implements cloud.VolumeManager.
func (c *ControlPlane) CreateVolume(_ context.Context, opts cloud.CreateVolumeOpts) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logicalID, _ := labels.LogicalID(opts.Tags)
	c.record("CreateVolume %s", logicalID)
	if err := c.fail("CreateVolume"); err != nil {
		return "", err
	}

	id := c.nextID("v")
	vol := &volume{
		Volume: cloud.Volume{
			ID:             id,
			Name:           opts.Name,
			Size:           opts.Size,
			Status:         cloud.VolumeCreating,
			ProviderStatus: "creating",
			Zone:           opts.Zone,
			Tags:           maps.Clone(opts.Tags),
		},
		logicalID: logicalID,
	}
	if c.volErrUsed[logicalID] < c.behaviors[logicalID].VolumeErrors {
		c.volErrUsed[logicalID]++
		vol.broken = true
	}
	c.volumes[id] = vol
	return id, nil
}

// GetVolume implements cloud.VolumeManager.
func (c *ControlPlane) GetVolume(_ context.Context, id string) (*cloud.Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("GetVolume"); err != nil {
		return nil, err
	}
	vol, ok := c.volumes[id]
	if !ok {
		return nil, cloud.NotFoundError("volume", id)
	}

	vol.reads++
	b := c.behaviors[vol.logicalID]
	if vol.reads >= c.Settle {
		switch {
		case vol.deleting && b.VolumeErrorDeleting:
			vol.Status, vol.ProviderStatus = cloud.VolumeErrorDeleting, "error_deleting"
		case vol.deleting:
			delete(c.volumes, id)
			return nil, cloud.NotFoundError("volume", id)
		case vol.Status == cloud.VolumeCreating && vol.broken:
			vol.Status, vol.ProviderStatus = cloud.VolumeError, "error"
		case vol.Status == cloud.VolumeCreating:
			vol.Status, vol.ProviderStatus = cloud.VolumeAvailable, "available"
		case vol.attaching && !b.AttachStuck:
			vol.attaching = false
			vol.Status, vol.ProviderStatus = cloud.VolumeInUse, "in-use"
		}
	}

	out := vol.Volume
	out.Tags = maps.Clone(vol.Tags)
	return &out, nil
}

// DeleteVolume implements cloud.VolumeManager. Volumes that are attached or
// attaching cannot be deleted.
func (c *ControlPlane) DeleteVolume(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("DeleteVolume %s", id)
	if err := c.fail("DeleteVolume"); err != nil {
		return err
	}
	vol, ok := c.volumes[id]
	if !ok {
		return nil
	}
	switch vol.Status {
	case cloud.VolumeAvailable, cloud.VolumeError:
	default:
		return fmt.Errorf("volume %s cannot be deleted in status %s", id, vol.Status)
	}
	vol.deleting = true
	vol.reads = 0
	vol.Status, vol.ProviderStatus = cloud.VolumeDeleting, "deleting"
	return nil
}

// ListVolumes implements cloud.VolumeManager.
func (c *ControlPlane) ListVolumes(_ context.Context) ([]*cloud.Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListVolumes"); err != nil {
		return nil, err
	}
	var out []*cloud.Volume
	for _, id := range slices.Sorted(maps.Keys(c.volumes)) {
		v := c.volumes[id].Volume
		v.Tags = maps.Clone(v.Tags)
		out = append(out, &v)
	}
	return out, nil
}

// AttachVolume implements cloud.VolumeManager.
func (c *ControlPlane) AttachVolume(_ context.Context, volumeID, instanceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("AttachVolume %s", volumeID)
	if err := c.fail("AttachVolume"); err != nil {
		return err
	}
	vol, ok := c.volumes[volumeID]
	if !ok {
		return cloud.NotFoundError("volume", volumeID)
	}
	if _, ok := c.instances[instanceID]; !ok {
		return cloud.NotFoundError("instance", instanceID)
	}
	if err := c.behaviors[vol.logicalID].AttachErr; err != nil {
		return err
	}
	if vol.Status != cloud.VolumeAvailable {
		return fmt.Errorf("volume %s is %s", volumeID, vol.Status)
	}
	vol.InstanceID = instanceID
	vol.attaching = true
	vol.reads = 0
	vol.Status, vol.ProviderStatus = cloud.VolumeAttaching, "attaching"
	return nil
}

// AllocateFloatingIP implements cloud.FloatingIPManager.
func (c *ControlPlane) AllocateFloatingIP(_ context.Context, pool string) (*cloud.FloatingIP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("AllocateFloatingIP %s", pool)
	if err := c.fail("AllocateFloatingIP"); err != nil {
		return nil, err
	}
	if !slices.Contains(c.pools, pool) {
		return nil, fmt.Errorf("pool %s: %w", pool, cloud.ErrNotFound)
	}
	id := c.nextID("fip")
	fip := &cloud.FloatingIP{ID: id, Address: fmt.Sprintf("203.0.113.%d", c.seq), Pool: pool}
	c.fips[id] = fip
	out := *fip
	return &out, nil
}

// AssociateFloatingIP implements cloud.FloatingIPManager.
func (c *ControlPlane) AssociateFloatingIP(_ context.Context, address, instanceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("AssociateFloatingIP %s", address)
	if err := c.fail("AssociateFloatingIP"); err != nil {
		return err
	}
	inst, ok := c.instances[instanceID]
	if !ok {
		return cloud.NotFoundError("instance", instanceID)
	}
	for id, fip := range c.fips {
		if fip.Address == address {
			c.fipOwners[id] = inst.logicalID
		}
	}
	b := c.behaviors[inst.logicalID]
	if b.AssociateErr != nil {
		return b.AssociateErr
	}
	if b.AssociateFails {
		return nil
	}
	for _, fip := range c.fips {
		if fip.Address == address {
			fip.InstanceID = instanceID
			return nil
		}
	}
	return fmt.Errorf("floating IP %s: %w", address, cloud.ErrNotFound)
}

// DeleteFloatingIP implements cloud.FloatingIPManager.
func (c *ControlPlane) DeleteFloatingIP(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.record("DeleteFloatingIP %s", id)
	if err := c.fail("DeleteFloatingIP"); err != nil {
		return err
	}
	delete(c.fips, id)
	delete(c.fipOwners, id)
	return nil
}

// ListFloatingIPs implements cloud.FloatingIPManager.
func (c *ControlPlane) ListFloatingIPs(_ context.Context) ([]*cloud.FloatingIP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListFloatingIPs"); err != nil {
		return nil, err
	}
	var out []*cloud.FloatingIP
	for _, id := range slices.Sorted(maps.Keys(c.fips)) {
		fip := *c.fips[id]
		out = append(out, &fip)
	}
	return out, nil
}

// ListFloatingIPPools implements cloud.FloatingIPManager.
func (c *ControlPlane) ListFloatingIPPools(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("ListFloatingIPPools"); err != nil {
		return nil, err
	}
	return slices.Clone(c.pools), nil
}

// Capabilities implements cloud.ControlPlane.
func (c *ControlPlane) Capabilities(_ context.Context) (cloud.Capabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("Capabilities"); err != nil {
		return cloud.Capabilities{}, err
	}
	return c.caps, nil
}

// ZoneExists implements cloud.Inspector.
func (c *ControlPlane) ZoneExists(_ context.Context, zone string) (bool, error) {
	return c.contains("ZoneExists", c.zones, zone)
}

// ImageReady implements cloud.Inspector.
func (c *ControlPlane) ImageReady(_ context.Context, image string) (bool, error) {
	return c.contains("ImageReady", c.images, image)
}

// KeyPairExists implements cloud.Inspector.
func (c *ControlPlane) KeyPairExists(_ context.Context, name string) (bool, error) {
	return c.contains("KeyPairExists", c.keyPairs, name)
}

// MissingSecurityGroups implements cloud.Inspector.
func (c *ControlPlane) MissingSecurityGroups(_ context.Context, names []string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail("MissingSecurityGroups"); err != nil {
		return nil, err
	}
	var missing []string
	for _, n := range names {
		if !slices.Contains(c.secGroups, n) {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

// FlavorExists implements cloud.DatabaseInspector.
func (c *ControlPlane) FlavorExists(_ context.Context, flavor string) (bool, error) {
	return c.contains("FlavorExists", c.flavors, flavor)
}

// DatastoreVersionExists implements cloud.DatabaseInspector. Datastores are
// keyed as "type-version".
func (c *ControlPlane) DatastoreVersionExists(_ context.Context, datastore, version string) (bool, error) {
	return c.contains("DatastoreVersionExists", c.datastores, datastore+"-"+version)
}

func (c *ControlPlane) contains(method string, set []string, v string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fail(method); err != nil {
		return false, err
	}
	return slices.Contains(set, v), nil
}

var (
	_ cloud.ControlPlane      = (*ControlPlane)(nil)
	_ cloud.Inspector         = (*ControlPlane)(nil)
	_ cloud.DatabaseInspector = (*ControlPlane)(nil)
)

// ErrInjected is a convenience error for scripted failures.
var ErrInjected = errors.New("injected failure")
