package cloud

// Status is the canonical instance status.
type Status string

// Canonical instance statuses.
const (
	StatusPending Status = "PENDING"
	StatusRunning Status = "RUNNING"
	StatusStopped Status = "STOPPED"
	StatusFailed  Status = "FAILED"
	StatusUnknown Status = "UNKNOWN"
	// StatusDeleted is also synthesized for logical IDs that no longer resolve.
	StatusDeleted Status = "DELETED"
)

// Statuses lists every canonical instance status.
var Statuses = []Status{
	StatusPending, StatusRunning, StatusStopped, StatusFailed, StatusUnknown, StatusDeleted,
}

// VolumeStatus is the canonical volume status.
type VolumeStatus string

// Canonical volume statuses.
const (
	VolumeCreating      VolumeStatus = "CREATING"
	VolumeAvailable     VolumeStatus = "AVAILABLE"
	VolumeAttaching     VolumeStatus = "ATTACHING"
	VolumeInUse         VolumeStatus = "IN_USE"
	VolumeDeleting      VolumeStatus = "DELETING"
	VolumeError         VolumeStatus = "ERROR"
	VolumeErrorDeleting VolumeStatus = "ERROR_DELETING"
	VolumeUnknown       VolumeStatus = "UNKNOWN"
)

// StatusTable translates a provider's instance status vocabulary into canonical
// statuses. Lookups are exact; anything not in the table is StatusUnknown.
type StatusTable map[string]Status

// Translate returns the canonical status for a provider status.
func (t StatusTable) Translate(providerStatus string) Status {
	if s, ok := t[providerStatus]; ok {
		return s
	}
	return StatusUnknown
}

// VolumeStatusTable translates provider volume statuses into canonical ones.
type VolumeStatusTable map[string]VolumeStatus

// Translate returns the canonical volume status for a provider status.
func (t VolumeStatusTable) Translate(providerStatus string) VolumeStatus {
	if s, ok := t[providerStatus]; ok {
		return s
	}
	return VolumeUnknown
}
