package hcloud

import (
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// serverStatuses maps Hetzner server statuses onto canonical statuses.
var serverStatuses = cloud.StatusTable{
	string(hcloud.ServerStatusInitializing): cloud.StatusPending,
	string(hcloud.ServerStatusStarting):     cloud.StatusPending,
	string(hcloud.ServerStatusRebuilding):   cloud.StatusPending,
	string(hcloud.ServerStatusRunning):      cloud.StatusRunning,
	string(hcloud.ServerStatusMigrating):    cloud.StatusRunning,
	string(hcloud.ServerStatusStopping):     cloud.StatusStopped,
	string(hcloud.ServerStatusOff):          cloud.StatusStopped,
	string(hcloud.ServerStatusDeleting):     cloud.StatusDeleted,
}

var volumeStatuses = cloud.VolumeStatusTable{
	string(hcloud.VolumeStatusCreating):  cloud.VolumeCreating,
	string(hcloud.VolumeStatusAvailable): cloud.VolumeAvailable,
}

// volumeStatus reports IN_USE for an available volume bound to a server.
func volumeStatus(v *hcloud.Volume) cloud.VolumeStatus {
	s := volumeStatuses.Translate(string(v.Status))
	if s == cloud.VolumeAvailable && v.Server != nil {
		return cloud.VolumeInUse
	}
	return s
}
