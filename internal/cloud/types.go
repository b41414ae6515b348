package cloud

import "time"

// Instance is a control plane view of a compute instance.
type Instance struct {
	ID             string
	Name           string
	Status         Status
	ProviderStatus string

	// Addresses holds every address in the order the provider reports them:
	// fixed addresses first, floating addresses after.
	Addresses  []string
	FloatingIP string

	ImageID   string
	Flavor    string
	KeyName   string
	NetworkID string
	Zone      string
	Created   time.Time

	Tags map[string]string
}

// HasAddress reports whether the instance is network reachable.
func (i *Instance) HasAddress() bool {
	return i != nil && len(i.Addresses) > 0
}

// Volume is a control plane view of a block storage volume.
type Volume struct {
	ID             string
	Name           string
	Size           int
	Status         VolumeStatus
	ProviderStatus string
	// InstanceID is the instance the volume is attached to, if any.
	InstanceID string
	Zone       string
	Tags       map[string]string
}

// FloatingIP is a public address leased from a pool.
type FloatingIP struct {
	ID      string
	Address string
	Pool    string
	// InstanceID is empty while the address is not associated.
	InstanceID string
}

// Capabilities describes optional control plane APIs.
type Capabilities struct {
	VolumeAttach bool
	FloatingIP   bool
}

// CreateInstanceOpts holds everything needed to create an instance.
type CreateInstanceOpts struct {
	Name           string
	Image          string
	Flavor         string
	Network        string
	Zone           string
	KeyName        string
	SecurityGroups []string
	Tags           map[string]string

	// Database is set when the instance is a managed database.
	Database *DatabaseOpts
}

// DatabaseOpts describes the datastore of a database instance.
type DatabaseOpts struct {
	Datastore string
	Version   string
	// VolumeSize in GB.
	VolumeSize int
	Username   string
	Password   string
}

// CreateVolumeOpts holds everything needed to create a volume.
type CreateVolumeOpts struct {
	Name string
	// Size in GB.
	Size int
	Zone string
	Tags map[string]string
}
