package openstack

import "github.com/imamik/fleetalloc/internal/cloud"

// serverStatuses maps Nova server statuses onto canonical statuses.
var serverStatuses = cloud.StatusTable{
	"BUILD":             cloud.StatusPending,
	"REBUILD":           cloud.StatusPending,
	"REBOOT":            cloud.StatusPending,
	"HARD_REBOOT":       cloud.StatusPending,
	"RESIZE":            cloud.StatusPending,
	"VERIFY_RESIZE":     cloud.StatusPending,
	"REVERT_RESIZE":     cloud.StatusPending,
	"PASSWORD":          cloud.StatusPending,
	"MIGRATING":         cloud.StatusPending,
	"ACTIVE":            cloud.StatusRunning,
	"SHUTOFF":           cloud.StatusStopped,
	"STOPPED":           cloud.StatusStopped,
	"PAUSED":            cloud.StatusStopped,
	"SUSPENDED":         cloud.StatusStopped,
	"SHELVED":           cloud.StatusStopped,
	"SHELVED_OFFLOADED": cloud.StatusStopped,
	"RESCUE":            cloud.StatusFailed,
	"ERROR":             cloud.StatusFailed,
	"DELETED":           cloud.StatusDeleted,
	"SOFT_DELETED":      cloud.StatusDeleted,
	"UNKNOWN":           cloud.StatusUnknown,
}

// databaseStatuses maps Trove instance statuses onto canonical statuses.
// Backups and pending restarts leave the datastore serving.
var databaseStatuses = cloud.StatusTable{
	"BUILD":            cloud.StatusPending,
	"REBOOT":           cloud.StatusPending,
	"RESIZE":           cloud.StatusPending,
	"UPGRADE":          cloud.StatusPending,
	"PROMOTE":          cloud.StatusPending,
	"EJECT":            cloud.StatusPending,
	"DETACH":           cloud.StatusPending,
	"ACTIVE":           cloud.StatusRunning,
	"BACKUP":           cloud.StatusRunning,
	"RESTART_REQUIRED": cloud.StatusRunning,
	"SHUTDOWN":         cloud.StatusStopped,
	"BLOCKED":          cloud.StatusFailed,
	"ERROR":            cloud.StatusFailed,
	"FAILED":           cloud.StatusFailed,
}

// volumeStatuses maps Cinder volume statuses onto canonical statuses.
var volumeStatuses = cloud.VolumeStatusTable{
	"creating":       cloud.VolumeCreating,
	"available":      cloud.VolumeAvailable,
	"attaching":      cloud.VolumeAttaching,
	"reserved":       cloud.VolumeAttaching,
	"in-use":         cloud.VolumeInUse,
	"deleting":       cloud.VolumeDeleting,
	"error":          cloud.VolumeError,
	"error_deleting": cloud.VolumeErrorDeleting,
}
