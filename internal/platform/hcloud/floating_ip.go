package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// AllocateFloatingIP implements cloud.FloatingIPManager. The pool names the
// home location of the new IPv4 address.
func (c *Client) AllocateFloatingIP(ctx context.Context, pool string) (*cloud.FloatingIP, error) {
	loc, err := lookup(ctx, "location", pool, c.client.Location.GetByName)
	if err != nil {
		return nil, err
	}

	var result hcloud.FloatingIPCreateResult
	err = c.withRetry(ctx, func() error {
		var err error
		result, _, err = c.client.FloatingIP.Create(ctx, hcloud.FloatingIPCreateOpts{
			Type:         hcloud.FloatingIPTypeIPv4,
			HomeLocation: loc,
			Labels:       map[string]string{labels.KeyManagedBy: labels.ManagedByFleetalloc},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create floating IP in %s: %w", pool, err)
	}
	return toFloatingIP(result.FloatingIP), nil
}

// AssociateFloatingIP implements cloud.FloatingIPManager.
func (c *Client) AssociateFloatingIP(ctx context.Context, address, instanceID string) error {
	sid, err := parseID("server", instanceID)
	if err != nil {
		return err
	}

	fips, err := c.client.FloatingIP.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list floating IPs: %w", err)
	}
	var fip *hcloud.FloatingIP
	for _, f := range fips {
		if f.IP != nil && f.IP.String() == address {
			fip = f
			break
		}
	}
	if fip == nil {
		return cloud.NotFoundError("floating IP", address)
	}

	return c.withRetry(ctx, func() error {
		_, _, err := c.client.FloatingIP.Assign(ctx, fip, &hcloud.Server{ID: sid})
		return err
	})
}

// DeleteFloatingIP implements cloud.FloatingIPManager.
func (c *Client) DeleteFloatingIP(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.FloatingIP]{
		ID:           id,
		ResourceType: "floating IP",
		Get:          c.client.FloatingIP.GetByID,
		Delete:       c.client.FloatingIP.Delete,
	}).Execute(ctx, c)
}

// ListFloatingIPs implements cloud.FloatingIPManager.
func (c *Client) ListFloatingIPs(ctx context.Context) ([]*cloud.FloatingIP, error) {
	fips, err := c.client.FloatingIP.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list floating IPs: %w", err)
	}
	out := make([]*cloud.FloatingIP, 0, len(fips))
	for _, f := range fips {
		out = append(out, toFloatingIP(f))
	}
	return out, nil
}

// ListFloatingIPPools implements cloud.FloatingIPManager. Every location is
// a pool.
func (c *Client) ListFloatingIPPools(ctx context.Context) ([]string, error) {
	locs, err := c.client.Location.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	out := make([]string, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.Name)
	}
	return out, nil
}

func toFloatingIP(f *hcloud.FloatingIP) *cloud.FloatingIP {
	out := &cloud.FloatingIP{ID: formatID(f.ID)}
	if f.IP != nil {
		out.Address = f.IP.String()
	}
	if f.HomeLocation != nil {
		out.Pool = f.HomeLocation.Name
	}
	if f.Server != nil {
		out.InstanceID = formatID(f.Server.ID)
	}
	return out
}
