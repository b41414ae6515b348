package openstack

import (
	"context"
	"fmt"
	"sort"

	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/availabilityzones"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/images"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// serverWithExt adds the availability zone Nova reports as an extension.
type serverWithExt struct {
	servers.Server
	availabilityzones.ServerAvailabilityZoneExt
}

// CreateInstance implements cloud.InstanceManager. Image, flavor and network
// are resolved by name before the server is requested.
func (c *Client) CreateInstance(ctx context.Context, opts cloud.CreateInstanceOpts) (string, error) {
	imageID, err := c.imageID(opts.Image)
	if err != nil {
		return "", err
	}
	flavorID, err := c.flavorID(opts.Flavor)
	if err != nil {
		return "", err
	}

	createOpts := servers.CreateOpts{
		Name:             opts.Name,
		ImageRef:         imageID,
		FlavorRef:        flavorID,
		SecurityGroups:   opts.SecurityGroups,
		AvailabilityZone: opts.Zone,
		Metadata:         opts.Tags,
	}
	if opts.Network != "" {
		networkID, err := c.networkID(opts.Network)
		if err != nil {
			return "", err
		}
		createOpts.Networks = []servers.Network{{UUID: networkID}}
	}

	var server *servers.Server
	err = c.withRetry(ctx, func() error {
		var err error
		server, err = servers.Create(c.compute, keypairs.CreateOptsExt{
			CreateOptsBuilder: createOpts,
			KeyName:           opts.KeyName,
		}).Extract()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	c.log.V(1).Info("requested server", "name", opts.Name, "serverID", server.ID)
	return server.ID, nil
}

// GetInstance implements cloud.InstanceManager.
func (c *Client) GetInstance(_ context.Context, id string) (*cloud.Instance, error) {
	var s serverWithExt
	if err := servers.Get(c.compute, id).ExtractInto(&s); err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, notFound(err, "server", id))
	}
	return toInstance(&s), nil
}

// DeleteInstance implements cloud.InstanceManager.
func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	return c.withRetry(ctx, func() error {
		err := servers.Delete(c.compute, id).ExtractErr()
		if err == nil || isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete server %s: %w", id, err)
	})
}

// ListInstances implements cloud.InstanceManager. Only servers carrying a
// logical ID are listed.
func (c *Client) ListInstances(context.Context) ([]*cloud.Instance, error) {
	pages, err := servers.List(c.compute, servers.ListOpts{}).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	var all []serverWithExt
	if err := servers.ExtractServersInto(pages, &all); err != nil {
		return nil, fmt.Errorf("failed to extract servers: %w", err)
	}

	out := make([]*cloud.Instance, 0, len(all))
	for i := range all {
		if managed(all[i].Metadata) {
			out = append(out, toInstance(&all[i]))
		}
	}
	return out, nil
}

func (c *Client) imageID(name string) (string, error) {
	pages, err := images.ListDetail(c.compute, images.ListOpts{Name: name}).AllPages()
	if err != nil {
		return "", fmt.Errorf("failed to list images: %w", err)
	}
	all, err := images.ExtractImages(pages)
	if err != nil {
		return "", fmt.Errorf("failed to extract images: %w", err)
	}
	for _, img := range all {
		if img.Name == name || img.ID == name {
			return img.ID, nil
		}
	}
	return "", fmt.Errorf("image not found: %s", name)
}

func (c *Client) flavorID(name string) (string, error) {
	pages, err := flavors.ListDetail(c.compute, flavors.ListOpts{}).AllPages()
	if err != nil {
		return "", fmt.Errorf("failed to list flavors: %w", err)
	}
	all, err := flavors.ExtractFlavors(pages)
	if err != nil {
		return "", fmt.Errorf("failed to extract flavors: %w", err)
	}
	for _, f := range all {
		if f.Name == name || f.ID == name {
			return f.ID, nil
		}
	}
	return "", fmt.Errorf("flavor not found: %s: %w", name, cloud.ErrNotFound)
}

func (c *Client) networkID(nameOrID string) (string, error) {
	if err := c.requireNetwork(); err != nil {
		return "", err
	}
	pages, err := networks.List(c.network, networks.ListOpts{}).AllPages()
	if err != nil {
		return "", fmt.Errorf("failed to list networks: %w", err)
	}
	all, err := networks.ExtractNetworks(pages)
	if err != nil {
		return "", fmt.Errorf("failed to extract networks: %w", err)
	}
	for _, n := range all {
		if n.Name == nameOrID || n.ID == nameOrID {
			return n.ID, nil
		}
	}
	return "", fmt.Errorf("network not found: %s", nameOrID)
}

// toInstance converts a server. Addresses are grouped per network in name
// order: fixed addresses first, floating addresses after. NetworkID is the
// name of the network holding the first fixed address, since Nova keys
// addresses by network name.
func toInstance(s *serverWithExt) *cloud.Instance {
	inst := &cloud.Instance{
		ID:             s.ID,
		Name:           s.Name,
		Status:         serverStatuses.Translate(s.Status),
		ProviderStatus: s.Status,
		KeyName:        s.KeyName,
		Zone:           s.AvailabilityZone,
		Created:        s.Created,
		Tags:           s.Metadata,
	}
	if id, ok := s.Image["id"].(string); ok {
		inst.ImageID = id
	}
	if name, ok := s.Flavor["original_name"].(string); ok {
		inst.Flavor = name
	} else if id, ok := s.Flavor["id"].(string); ok {
		inst.Flavor = id
	}

	netNames := make([]string, 0, len(s.Addresses))
	for name := range s.Addresses {
		netNames = append(netNames, name)
	}
	sort.Strings(netNames)

	var floating []string
	for _, name := range netNames {
		entries, _ := s.Addresses[name].([]interface{})
		for _, e := range entries {
			addr, _ := e.(map[string]interface{})
			ip, _ := addr["addr"].(string)
			if ip == "" {
				continue
			}
			if kind, _ := addr["OS-EXT-IPS:type"].(string); kind == "floating" {
				floating = append(floating, ip)
				continue
			}
			if inst.NetworkID == "" {
				inst.NetworkID = name
			}
			inst.Addresses = append(inst.Addresses, ip)
		}
	}
	if len(floating) > 0 {
		inst.FloatingIP = floating[0]
		inst.Addresses = append(inst.Addresses, floating...)
	}
	return inst
}
