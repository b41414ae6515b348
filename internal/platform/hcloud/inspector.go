package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ZoneExists implements cloud.Inspector.
func (c *Client) ZoneExists(ctx context.Context, zone string) (bool, error) {
	loc, _, err := c.client.Location.Get(ctx, zone)
	if err != nil {
		return false, fmt.Errorf("failed to get location: %w", err)
	}
	return loc != nil, nil
}

// ImageReady implements cloud.Inspector.
func (c *Client) ImageReady(ctx context.Context, image string) (bool, error) {
	images, err := c.client.Image.AllWithOpts(ctx, hcloud.ImageListOpts{
		Name:   image,
		Status: []hcloud.ImageStatus{hcloud.ImageStatusAvailable},
	})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	return len(images) > 0, nil
}

// KeyPairExists implements cloud.Inspector.
func (c *Client) KeyPairExists(ctx context.Context, name string) (bool, error) {
	key, _, err := c.client.SSHKey.Get(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to get ssh key: %w", err)
	}
	return key != nil, nil
}

// MissingSecurityGroups implements cloud.Inspector. Security groups are
// firewalls.
func (c *Client) MissingSecurityGroups(ctx context.Context, names []string) ([]string, error) {
	var missing []string
	for _, name := range names {
		fw, _, err := c.client.Firewall.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get firewall %s: %w", name, err)
		}
		if fw == nil {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
