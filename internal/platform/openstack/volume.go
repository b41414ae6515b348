package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/openstack/blockstorage/v3/volumes"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/volumeattach"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// CreateVolume implements cloud.VolumeManager.
func (c *Client) CreateVolume(ctx context.Context, opts cloud.CreateVolumeOpts) (string, error) {
	if err := c.requireVolumes(); err != nil {
		return "", err
	}

	var vol *volumes.Volume
	err := c.withRetry(ctx, func() error {
		var err error
		vol, err = volumes.Create(c.volumes, volumes.CreateOpts{
			Name:             opts.Name,
			Size:             opts.Size,
			AvailabilityZone: opts.Zone,
			Metadata:         opts.Tags,
		}).Extract()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create volume %s: %w", opts.Name, err)
	}
	return vol.ID, nil
}

// GetVolume implements cloud.VolumeManager.
func (c *Client) GetVolume(_ context.Context, id string) (*cloud.Volume, error) {
	if err := c.requireVolumes(); err != nil {
		return nil, err
	}
	vol, err := volumes.Get(c.volumes, id).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to get volume %s: %w", id, notFound(err, "volume", id))
	}
	return toVolume(vol), nil
}

// DeleteVolume implements cloud.VolumeManager.
func (c *Client) DeleteVolume(ctx context.Context, id string) error {
	if err := c.requireVolumes(); err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		err := volumes.Delete(c.volumes, id, volumes.DeleteOpts{}).ExtractErr()
		if err == nil || isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete volume %s: %w", id, err)
	})
}

// ListVolumes implements cloud.VolumeManager. Cinder cannot filter on the
// presence of a metadata key, so unmanaged volumes are dropped here.
func (c *Client) ListVolumes(context.Context) ([]*cloud.Volume, error) {
	if err := c.requireVolumes(); err != nil {
		return nil, err
	}
	pages, err := volumes.List(c.volumes, volumes.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	all, err := volumes.ExtractVolumes(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract volumes: %w", err)
	}

	out := make([]*cloud.Volume, 0, len(all))
	for i := range all {
		if managed(all[i].Metadata) {
			out = append(out, toVolume(&all[i]))
		}
	}
	return out, nil
}

// AttachVolume implements cloud.VolumeManager through Nova's
// os-volume_attachments API.
func (c *Client) AttachVolume(ctx context.Context, volumeID, instanceID string) error {
	if err := c.requireVolumes(); err != nil {
		return err
	}
	err := c.withRetry(ctx, func() error {
		_, err := volumeattach.Create(c.compute, instanceID, volumeattach.CreateOpts{
			VolumeID: volumeID,
		}).Extract()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to attach volume %s to server %s: %w",
			volumeID, instanceID, notFound(err, "server", instanceID))
	}
	return nil
}

func toVolume(v *volumes.Volume) *cloud.Volume {
	out := &cloud.Volume{
		ID:             v.ID,
		Name:           v.Name,
		Size:           v.Size,
		Status:         volumeStatuses.Translate(v.Status),
		ProviderStatus: v.Status,
		Zone:           v.AvailabilityZone,
		Tags:           v.Metadata,
	}
	if len(v.Attachments) > 0 {
		out.InstanceID = v.Attachments[0].ServerID
	}
	return out
}
