package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/availabilityzones"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/images"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/groups"
)

// ZoneExists implements cloud.Inspector.
func (c *Client) ZoneExists(_ context.Context, zone string) (bool, error) {
	pages, err := availabilityzones.List(c.compute).AllPages()
	if err != nil {
		return false, fmt.Errorf("failed to list availability zones: %w", err)
	}
	zones, err := availabilityzones.ExtractAvailabilityZones(pages)
	if err != nil {
		return false, fmt.Errorf("failed to extract availability zones: %w", err)
	}
	for _, z := range zones {
		if z.ZoneName == zone {
			return true, nil
		}
	}
	return false, nil
}

// ImageReady implements cloud.Inspector. Only ACTIVE images can be booted.
func (c *Client) ImageReady(_ context.Context, image string) (bool, error) {
	pages, err := images.ListDetail(c.compute, images.ListOpts{Name: image}).AllPages()
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}
	all, err := images.ExtractImages(pages)
	if err != nil {
		return false, fmt.Errorf("failed to extract images: %w", err)
	}
	for _, img := range all {
		if (img.Name == image || img.ID == image) && img.Status == "ACTIVE" {
			return true, nil
		}
	}
	return false, nil
}

// KeyPairExists implements cloud.Inspector.
func (c *Client) KeyPairExists(_ context.Context, name string) (bool, error) {
	if _, err := keypairs.Get(c.compute, name, nil).Extract(); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get key pair %s: %w", name, err)
	}
	return true, nil
}

// MissingSecurityGroups implements cloud.Inspector.
func (c *Client) MissingSecurityGroups(_ context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if err := c.requireNetwork(); err != nil {
		return nil, err
	}
	pages, err := groups.List(c.network, groups.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list security groups: %w", err)
	}
	all, err := groups.ExtractGroups(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract security groups: %w", err)
	}

	existing := make(map[string]bool, len(all))
	for _, g := range all {
		existing[g.Name] = true
		existing[g.ID] = true
	}
	var missing []string
	for _, name := range names {
		if !existing[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
