package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/external"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/layer3/floatingips"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/ports"

	"github.com/imamik/fleetalloc/internal/cloud"
)

type network struct {
	networks.Network
	external.NetworkExternalExt
}

// externalNetworks lists the networks floating IPs can be allocated from.
func (c *Client) externalNetworks() ([]network, error) {
	if err := c.requireNetwork(); err != nil {
		return nil, err
	}
	isExternal := true
	pages, err := networks.List(c.network, external.ListOptsExt{
		ListOptsBuilder: networks.ListOpts{},
		External:        &isExternal,
	}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list external networks: %w", err)
	}
	var all []network
	if err := networks.ExtractNetworksInto(pages, &all); err != nil {
		return nil, fmt.Errorf("failed to extract networks: %w", err)
	}

	out := all[:0]
	for _, n := range all {
		if n.External {
			out = append(out, n)
		}
	}
	return out, nil
}

// pool resolves an external network by name, the same key
// ListFloatingIPPools reports.
func (c *Client) pool(name string) (*network, error) {
	all, err := c.externalNetworks()
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, cloud.NotFoundError("floating IP pool", name)
}

// AllocateFloatingIP implements cloud.FloatingIPManager. The pool names an
// external network.
func (c *Client) AllocateFloatingIP(ctx context.Context, pool string) (*cloud.FloatingIP, error) {
	ext, err := c.pool(pool)
	if err != nil {
		return nil, err
	}

	var fip *floatingips.FloatingIP
	err = c.withRetry(ctx, func() error {
		var err error
		fip, err = floatingips.Create(c.network, floatingips.CreateOpts{
			FloatingNetworkID: ext.ID,
		}).Extract()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create floating IP in %s: %w", pool, err)
	}
	return &cloud.FloatingIP{ID: fip.ID, Address: fip.FloatingIP, Pool: ext.Name}, nil
}

// AssociateFloatingIP implements cloud.FloatingIPManager by binding the
// address to the first port of the instance.
func (c *Client) AssociateFloatingIP(ctx context.Context, address, instanceID string) error {
	if err := c.requireNetwork(); err != nil {
		return err
	}

	pages, err := floatingips.List(c.network, floatingips.ListOpts{FloatingIP: address}).AllPages()
	if err != nil {
		return fmt.Errorf("failed to list floating IPs: %w", err)
	}
	fips, err := floatingips.ExtractFloatingIPs(pages)
	if err != nil {
		return fmt.Errorf("failed to extract floating IPs: %w", err)
	}
	if len(fips) == 0 {
		return cloud.NotFoundError("floating IP", address)
	}

	pages, err = ports.List(c.network, ports.ListOpts{DeviceID: instanceID}).AllPages()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	instancePorts, err := ports.ExtractPorts(pages)
	if err != nil {
		return fmt.Errorf("failed to extract ports: %w", err)
	}
	if len(instancePorts) == 0 {
		return fmt.Errorf("server %s has no port yet", instanceID)
	}

	portID := instancePorts[0].ID
	return c.withRetry(ctx, func() error {
		_, err := floatingips.Update(c.network, fips[0].ID, floatingips.UpdateOpts{PortID: &portID}).Extract()
		return err
	})
}

// DeleteFloatingIP implements cloud.FloatingIPManager.
func (c *Client) DeleteFloatingIP(ctx context.Context, id string) error {
	if err := c.requireNetwork(); err != nil {
		return err
	}
	return c.withRetry(ctx, func() error {
		err := floatingips.Delete(c.network, id).ExtractErr()
		if err == nil || isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete floating IP %s: %w", id, err)
	})
}

// ListFloatingIPs implements cloud.FloatingIPManager. Neutron reports the
// port a floating IP is bound to, so ports are listed to find the instance.
func (c *Client) ListFloatingIPs(context.Context) ([]*cloud.FloatingIP, error) {
	if err := c.requireNetwork(); err != nil {
		return nil, err
	}
	pages, err := floatingips.List(c.network, floatingips.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list floating IPs: %w", err)
	}
	fips, err := floatingips.ExtractFloatingIPs(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract floating IPs: %w", err)
	}

	pools, err := c.externalNetworks()
	if err != nil {
		return nil, err
	}
	poolNames := make(map[string]string, len(pools))
	for _, p := range pools {
		poolNames[p.ID] = p.Name
	}

	var devices map[string]string
	out := make([]*cloud.FloatingIP, 0, len(fips))
	for _, f := range fips {
		fip := &cloud.FloatingIP{ID: f.ID, Address: f.FloatingIP, Pool: poolNames[f.FloatingNetworkID]}
		if f.PortID != "" {
			if devices == nil {
				if devices, err = c.portDevices(); err != nil {
					return nil, err
				}
			}
			fip.InstanceID = devices[f.PortID]
		}
		out = append(out, fip)
	}
	return out, nil
}

// portDevices maps port IDs to the device they are bound to.
func (c *Client) portDevices() (map[string]string, error) {
	pages, err := ports.List(c.network, ports.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	all, err := ports.ExtractPorts(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract ports: %w", err)
	}
	devices := make(map[string]string, len(all))
	for _, p := range all {
		devices[p.ID] = p.DeviceID
	}
	return devices, nil
}

// ListFloatingIPPools implements cloud.FloatingIPManager.
func (c *Client) ListFloatingIPPools(context.Context) ([]string, error) {
	all, err := c.externalNetworks()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, n := range all {
		out = append(out, n.Name)
	}
	return out, nil
}
