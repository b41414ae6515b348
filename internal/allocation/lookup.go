package allocation

import (
	"context"
	"time"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
)

// Display property keys reported for found instances.
const (
	PropImageID          = "imageID"
	PropInstanceID       = "instanceID"
	PropInstanceType     = "instanceType"
	PropKeyName          = "keyName"
	PropLaunchTime       = "launchTime"
	PropPrivateIPAddress = "privateIpAddress"
	PropPublicIPAddress  = "publicIpAddress"
	PropNetworkID        = "networkId"
)

// FoundInstance is an existing instance together with its logical ID.
type FoundInstance struct {
	LogicalID string
	*cloud.Instance
}

// PrivateAddress returns the first address the provider reports.
func (f *FoundInstance) PrivateAddress() string {
	if len(f.Addresses) == 0 {
		return ""
	}
	return f.Addresses[0]
}

// PublicAddress returns the floating address, or the second reported
// address when the instance has no floating IP.
func (f *FoundInstance) PublicAddress() string {
	if f.FloatingIP != "" {
		return f.FloatingIP
	}
	if len(f.Addresses) > 1 {
		return f.Addresses[1]
	}
	return ""
}

// Properties returns the display properties. Empty values are omitted.
func (f *FoundInstance) Properties() map[string]string {
	props := map[string]string{
		PropImageID:          f.ImageID,
		PropInstanceID:       f.ID,
		PropInstanceType:     f.Flavor,
		PropKeyName:          f.KeyName,
		PropPrivateIPAddress: f.PrivateAddress(),
		PropPublicIPAddress:  f.PublicAddress(),
		PropNetworkID:        f.NetworkID,
	}
	if !f.Created.IsZero() {
		props[PropLaunchTime] = f.Created.UTC().Format(time.RFC3339)
	}
	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	return props
}

// Find returns the existing instances for logicalIDs in request order.
// Logical IDs without an instance are omitted.
func (o *Orchestrator) Find(ctx context.Context, _ config.Template, logicalIDs []string) ([]*FoundInstance, error) {
	ids := dedupe(logicalIDs)
	var resolved map[string]string
	err := o.withRetry(ctx, func() error {
		var err error
		resolved, err = o.resolver.Resolve(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	var found []*FoundInstance
	for _, id := range ids {
		pid, ok := resolved[id]
		if !ok {
			continue
		}
		inst, err := o.cp.GetInstance(ctx, pid)
		if cloud.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		found = append(found, &FoundInstance{LogicalID: id, Instance: inst})
	}
	return found, nil
}

// GetInstanceState returns one canonical status per logical ID. IDs that do
// not resolve, or whose instance disappeared, are DELETED. An instance whose
// status cannot be fetched is UNKNOWN.
func (o *Orchestrator) GetInstanceState(ctx context.Context, _ config.Template, logicalIDs []string) (map[string]cloud.Status, error) {
	ids := dedupe(logicalIDs)
	var resolved map[string]string
	err := o.withRetry(ctx, func() error {
		var err error
		resolved, err = o.resolver.Resolve(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	states := make(map[string]cloud.Status, len(ids))
	for _, id := range ids {
		pid, ok := resolved[id]
		if !ok {
			states[id] = cloud.StatusDeleted
			continue
		}
		inst, err := o.cp.GetInstance(ctx, pid)
		switch {
		case cloud.IsNotFound(err):
			states[id] = cloud.StatusDeleted
		case err != nil:
			o.log.Info("failed to fetch instance status", "logicalID", id, "instanceID", pid, "error", err.Error())
			states[id] = cloud.StatusUnknown
		default:
			states[id] = inst.Status
		}
	}
	return states, nil
}
