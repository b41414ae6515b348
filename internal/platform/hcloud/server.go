package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// CreateInstance implements cloud.InstanceManager. The server is requested and
// its ID returned without waiting for the create action.
func (c *Client) CreateInstance(ctx context.Context, opts cloud.CreateInstanceOpts) (string, error) {
	createOpts, err := c.buildServerCreateOpts(ctx, opts)
	if err != nil {
		return "", err
	}

	var result hcloud.ServerCreateResult
	err = c.withRetry(ctx, func() error {
		res, _, err := c.client.Server.Create(ctx, createOpts)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to create server %s: %w", opts.Name, err)
	}

	c.log.V(1).Info("requested server", "name", opts.Name, "serverID", result.Server.ID)
	return formatID(result.Server.ID), nil
}

// buildServerCreateOpts resolves every named dependency of the server.
func (c *Client) buildServerCreateOpts(ctx context.Context, opts cloud.CreateInstanceOpts) (hcloud.ServerCreateOpts, error) {
	serverType, err := lookup(ctx, "server type", opts.Flavor, c.client.ServerType.Get)
	if err != nil {
		return hcloud.ServerCreateOpts{}, err
	}

	image, _, err := c.client.Image.GetForArchitecture(ctx, opts.Image, serverType.Architecture)
	if err != nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return hcloud.ServerCreateOpts{}, fmt.Errorf("image not found: %s", opts.Image)
	}

	createOpts := hcloud.ServerCreateOpts{
		Name:       opts.Name,
		ServerType: serverType,
		Image:      image,
		Labels:     opts.Tags,
	}

	if opts.Zone != "" {
		if createOpts.Location, err = lookup(ctx, "location", opts.Zone, c.client.Location.Get); err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
	}
	if opts.KeyName != "" {
		key, err := lookup(ctx, "ssh key", opts.KeyName, c.client.SSHKey.Get)
		if err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
		createOpts.SSHKeys = []*hcloud.SSHKey{key}
	}
	if opts.Network != "" {
		network, err := lookup(ctx, "network", opts.Network, c.client.Network.Get)
		if err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
		createOpts.Networks = []*hcloud.Network{network}
	}
	for _, name := range opts.SecurityGroups {
		fw, err := lookup(ctx, "firewall", name, c.client.Firewall.Get)
		if err != nil {
			return hcloud.ServerCreateOpts{}, err
		}
		createOpts.Firewalls = append(createOpts.Firewalls, &hcloud.ServerCreateFirewall{Firewall: *fw})
	}

	return createOpts, nil
}

// GetInstance implements cloud.InstanceManager.
func (c *Client) GetInstance(ctx context.Context, id string) (*cloud.Instance, error) {
	sid, err := parseID("server", id)
	if err != nil {
		return nil, err
	}
	server, _, err := c.client.Server.GetByID(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s: %w", id, err)
	}
	if server == nil {
		return nil, cloud.NotFoundError("server", id)
	}

	inst := toInstance(server)
	if fips := server.PublicNet.FloatingIPs; len(fips) > 0 && fips[0] != nil {
		fip, _, err := c.client.FloatingIP.GetByID(ctx, fips[0].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get floating IP of server %s: %w", id, err)
		}
		if fip != nil && fip.IP != nil {
			inst.FloatingIP = fip.IP.String()
			inst.Addresses = append(inst.Addresses, inst.FloatingIP)
		}
	}
	return inst, nil
}

// DeleteInstance implements cloud.InstanceManager.
func (c *Client) DeleteInstance(ctx context.Context, id string) error {
	return (&DeleteOperation[*hcloud.Server]{
		ID:           id,
		ResourceType: "server",
		Get:          c.client.Server.GetByID,
		Delete: func(ctx context.Context, s *hcloud.Server) (*hcloud.Response, error) {
			_, resp, err := c.client.Server.DeleteWithResult(ctx, s)
			return resp, err
		},
	}).Execute(ctx, c)
}

// ListInstances implements cloud.InstanceManager. Only servers carrying a
// logical ID label are listed.
func (c *Client) ListInstances(ctx context.Context) ([]*cloud.Instance, error) {
	servers, err := c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{ListOpts: managedListOpts()})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	out := make([]*cloud.Instance, 0, len(servers))
	for _, s := range servers {
		out = append(out, toInstance(s))
	}
	return out, nil
}

// toInstance converts a server. Private addresses come first, then the
// primary public IPv4. Hetzner does not report the SSH key of a server, so
// KeyName stays empty.
func toInstance(s *hcloud.Server) *cloud.Instance {
	inst := &cloud.Instance{
		ID:             formatID(s.ID),
		Name:           s.Name,
		Status:         serverStatuses.Translate(string(s.Status)),
		ProviderStatus: string(s.Status),
		Created:        s.Created,
		Tags:           s.Labels,
	}

	for _, pn := range s.PrivateNet {
		if pn.IP != nil {
			inst.Addresses = append(inst.Addresses, pn.IP.String())
		}
		if inst.NetworkID == "" && pn.Network != nil {
			inst.NetworkID = formatID(pn.Network.ID)
		}
	}
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		inst.Addresses = append(inst.Addresses, ip.String())
	}

	if s.Image != nil {
		inst.ImageID = s.Image.Name
		if inst.ImageID == "" {
			inst.ImageID = formatID(s.Image.ID)
		}
	}
	if s.ServerType != nil {
		inst.Flavor = s.ServerType.Name
	}
	if s.Datacenter != nil && s.Datacenter.Location != nil {
		inst.Zone = s.Datacenter.Location.Name
	}
	return inst
}
