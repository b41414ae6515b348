package cloud

import "context"

// InstanceManager manages compute instances.
type InstanceManager interface {
	// CreateInstance requests a new instance and returns its provider ID.
	// The instance is usually not ready when the call returns.
	CreateInstance(ctx context.Context, opts CreateInstanceOpts) (string, error)
	// GetInstance returns ErrNotFound when the instance does not exist.
	GetInstance(ctx context.Context, id string) (*Instance, error)
	// DeleteInstance requests deletion. Deleting a missing instance is not an error.
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context) ([]*Instance, error)
}

// VolumeManager manages block storage volumes.
type VolumeManager interface {
	CreateVolume(ctx context.Context, opts CreateVolumeOpts) (string, error)
	// GetVolume returns ErrNotFound when the volume does not exist.
	GetVolume(ctx context.Context, id string) (*Volume, error)
	// DeleteVolume requests deletion. Deleting a missing volume is not an error.
	DeleteVolume(ctx context.Context, id string) error
	ListVolumes(ctx context.Context) ([]*Volume, error)
	AttachVolume(ctx context.Context, volumeID, instanceID string) error
}

// FloatingIPManager manages floating IPs and their pools.
type FloatingIPManager interface {
	AllocateFloatingIP(ctx context.Context, pool string) (*FloatingIP, error)
	// AssociateFloatingIP has no synchronous confirmation; callers verify the
	// association through ListFloatingIPs.
	AssociateFloatingIP(ctx context.Context, address, instanceID string) error
	DeleteFloatingIP(ctx context.Context, id string) error
	ListFloatingIPs(ctx context.Context) ([]*FloatingIP, error)
	ListFloatingIPPools(ctx context.Context) ([]string, error)
}

// ControlPlane combines every capability the allocator needs.
type ControlPlane interface {
	InstanceManager
	VolumeManager
	FloatingIPManager

	// Capabilities reports which optional APIs are present.
	Capabilities(ctx context.Context) (Capabilities, error)
}

// Inspector answers pre-flight questions about a template's references.
type Inspector interface {
	ZoneExists(ctx context.Context, zone string) (bool, error)
	// ImageReady reports whether the image exists and can be booted.
	ImageReady(ctx context.Context, image string) (bool, error)
	KeyPairExists(ctx context.Context, name string) (bool, error)
	// MissingSecurityGroups returns the names that do not exist.
	MissingSecurityGroups(ctx context.Context, names []string) ([]string, error)
}

// DatabaseInspector answers pre-flight questions about database templates.
type DatabaseInspector interface {
	DatastoreVersionExists(ctx context.Context, datastore, version string) (bool, error)
	FlavorExists(ctx context.Context, flavor string) (bool, error)
}
