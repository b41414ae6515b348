package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// CreateVolume implements cloud.VolumeManager. Hetzner volumes need a
// location, taken from the zone.
func (c *Client) CreateVolume(ctx context.Context, opts cloud.CreateVolumeOpts) (string, error) {
	if opts.Zone == "" {
		return "", fmt.Errorf("volume %s: a location is required", opts.Name)
	}
	loc, err := lookup(ctx, "location", opts.Zone, c.client.Location.Get)
	if err != nil {
		return "", err
	}

	var result hcloud.VolumeCreateResult
	err = c.withRetry(ctx, func() error {
		var err error
		result, _, err = c.client.Volume.Create(ctx, hcloud.VolumeCreateOpts{
			Name:     opts.Name,
			Size:     opts.Size,
			Location: loc,
			Labels:   opts.Tags,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create volume %s: %w", opts.Name, err)
	}
	return formatID(result.Volume.ID), nil
}

// GetVolume implements cloud.VolumeManager.
func (c *Client) GetVolume(ctx context.Context, id string) (*cloud.Volume, error) {
	vid, err := parseID("volume", id)
	if err != nil {
		return nil, err
	}
	vol, _, err := c.client.Volume.GetByID(ctx, vid)
	if err != nil {
		return nil, fmt.Errorf("failed to get volume %s: %w", id, err)
	}
	if vol == nil {
		return nil, cloud.NotFoundError("volume", id)
	}
	return toVolume(vol), nil
}

// DeleteVolume implements cloud.VolumeManager.
func (c *Client) DeleteVolume(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Volume]{
		ID:           id,
		ResourceType: "volume",
		Get:          c.client.Volume.GetByID,
		Delete:       c.client.Volume.Delete,
	}).Execute(ctx, c)
}

// ListVolumes implements cloud.VolumeManager.
func (c *Client) ListVolumes(ctx context.Context) ([]*cloud.Volume, error) {
	vols, err := c.client.Volume.AllWithOpts(ctx, hcloud.VolumeListOpts{ListOpts: managedListOpts()})
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	out := make([]*cloud.Volume, 0, len(vols))
	for _, v := range vols {
		out = append(out, toVolume(v))
	}
	return out, nil
}

// AttachVolume implements cloud.VolumeManager.
func (c *Client) AttachVolume(ctx context.Context, volumeID, instanceID string) error {
	vid, err := parseID("volume", volumeID)
	if err != nil {
		return err
	}
	sid, err := parseID("server", instanceID)
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, func() error {
		_, _, err := c.client.Volume.Attach(ctx, &hcloud.Volume{ID: vid}, &hcloud.Server{ID: sid})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to attach volume %s to server %s: %w", volumeID, instanceID, err)
	}
	return nil
}

func toVolume(v *hcloud.Volume) *cloud.Volume {
	out := &cloud.Volume{
		ID:             formatID(v.ID),
		Name:           v.Name,
		Size:           v.Size,
		Status:         volumeStatus(v),
		ProviderStatus: string(v.Status),
		Tags:           v.Labels,
	}
	if v.Server != nil {
		out.InstanceID = formatID(v.Server.ID)
	}
	if v.Location != nil {
		out.Zone = v.Location.Name
	}
	return out
}
