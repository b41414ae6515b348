package openstack

import (
	"context"
	"fmt"
	"strings"

	"github.com/gophercloud/gophercloud"
	goopenstack "github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/db/v1/datastores"
	"github.com/gophercloud/gophercloud/openstack/db/v1/instances"
	"github.com/gophercloud/gophercloud/openstack/db/v1/users"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// DatabaseClient provisions Trove database instances. Trove keeps no
// metadata on instances, so ownership is read from the instance name:
// "<prefix>-<logical ID>". Inspection is served by the embedded Client.
type DatabaseClient struct {
	*Client

	database *gophercloud.ServiceClient
	prefix   string
}

// DatabaseOption configures a DatabaseClient.
type DatabaseOption func(*DatabaseClient)

// WithDatabaseServiceClient sets a pre-built database service client.
func WithDatabaseServiceClient(sc *gophercloud.ServiceClient) DatabaseOption {
	return func(c *DatabaseClient) {
		c.database = sc
	}
}

// NewDatabaseClient wraps an OpenStack client with the database service.
// prefix must be the template's instance name prefix.
func NewDatabaseClient(c *Client, prefix string, opts ...DatabaseOption) (*DatabaseClient, error) {
	dc := &DatabaseClient{Client: c, prefix: prefix}
	for _, opt := range opts {
		opt(dc)
	}
	if dc.database != nil {
		return dc, nil
	}
	if c.provider == nil {
		return nil, fmt.Errorf("database: %w", cloud.ErrCapabilityMissing)
	}

	var err error
	if dc.database, err = goopenstack.NewDBV1(c.provider, c.endpoint); err != nil {
		if isEndpointNotFound(err) {
			return nil, fmt.Errorf("database service not found: %w", cloud.ErrCapabilityMissing)
		}
		return nil, fmt.Errorf("failed to get database client: %w", err)
	}
	return dc, nil
}

// NewTroveClient authenticates and returns a database client in one step.
func NewTroveClient(cfg config.OpenStackConfig, prefix string, opts ...ClientOption) (*DatabaseClient, error) {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewDatabaseClient(c, prefix)
}

// Capabilities implements cloud.ControlPlane. Database instances take
// neither attached volumes nor floating IPs.
func (c *DatabaseClient) Capabilities(context.Context) (cloud.Capabilities, error) {
	return cloud.Capabilities{}, nil
}

// CreateInstance implements cloud.InstanceManager. The master user is created
// together with the instance.
func (c *DatabaseClient) CreateInstance(ctx context.Context, opts cloud.CreateInstanceOpts) (string, error) {
	db := opts.Database
	if db == nil {
		return "", fmt.Errorf("instance %s: database options are required", opts.Name)
	}
	flavorID, err := c.flavorID(opts.Flavor)
	if err != nil {
		return "", err
	}

	createOpts := instances.CreateOpts{
		Name:      opts.Name,
		FlavorRef: flavorID,
		Size:      db.VolumeSize,
		Datastore: &instances.DatastoreOpts{Type: db.Datastore, Version: db.Version},
		Users: users.BatchCreateOpts{
			{Name: db.Username, Password: db.Password},
		},
	}
	if opts.Network != "" {
		networkID, err := c.networkID(opts.Network)
		if err != nil {
			return "", err
		}
		createOpts.Networks = []instances.NetworkOpts{{UUID: networkID}}
	}

	var inst *instances.Instance
	err = c.withRetry(ctx, func() error {
		var err error
		inst, err = instances.Create(c.database, createOpts).Extract()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to create database instance %s: %w", opts.Name, err)
	}

	c.log.V(1).Info("requested database instance", "name", opts.Name, "instanceID", inst.ID)
	return inst.ID, nil
}

// GetInstance implements cloud.InstanceManager.
func (c *DatabaseClient) GetInstance(_ context.Context, id string) (*cloud.Instance, error) {
	inst, err := instances.Get(c.database, id).Extract()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance %s: %w", id, notFound(err, "database instance", id))
	}
	return c.toInstance(inst), nil
}

// DeleteInstance implements cloud.InstanceManager.
func (c *DatabaseClient) DeleteInstance(ctx context.Context, id string) error {
	return c.withRetry(ctx, func() error {
		err := instances.Delete(c.database, id).ExtractErr()
		if err == nil || isNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete database instance %s: %w", id, err)
	})
}

// ListInstances implements cloud.InstanceManager. Only instances named with
// the client's prefix are listed.
func (c *DatabaseClient) ListInstances(context.Context) ([]*cloud.Instance, error) {
	pages, err := instances.List(c.database).AllPages()
	if err != nil {
		return nil, fmt.Errorf("failed to list database instances: %w", err)
	}
	all, err := instances.ExtractInstances(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract database instances: %w", err)
	}

	out := make([]*cloud.Instance, 0, len(all))
	for i := range all {
		if inst := c.toInstance(&all[i]); managed(inst.Tags) {
			out = append(out, inst)
		}
	}
	return out, nil
}

// FlavorExists implements cloud.DatabaseInspector.
func (c *DatabaseClient) FlavorExists(_ context.Context, flavor string) (bool, error) {
	_, err := c.flavorID(flavor)
	switch {
	case err == nil:
		return true, nil
	case cloud.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// DatastoreVersionExists implements cloud.DatabaseInspector. The datastore
// and version match by name or ID.
func (c *DatabaseClient) DatastoreVersionExists(_ context.Context, datastore, version string) (bool, error) {
	pages, err := datastores.List(c.database).AllPages()
	if err != nil {
		return false, fmt.Errorf("failed to list datastores: %w", err)
	}
	all, err := datastores.ExtractDatastores(pages)
	if err != nil {
		return false, fmt.Errorf("failed to extract datastores: %w", err)
	}
	for _, ds := range all {
		if !strings.EqualFold(ds.Name, datastore) && ds.ID != datastore {
			continue
		}
		for _, v := range ds.Versions {
			if v.Name == version || v.ID == version {
				return true, nil
			}
		}
	}
	return false, nil
}

// logicalID recovers the logical ID from an instance name.
func (c *DatabaseClient) logicalID(name string) (string, bool) {
	id, ok := strings.CutPrefix(name, c.prefix+"-")
	return id, ok && id != ""
}

// toInstance converts a database instance. The hostname stands in for an
// address when Trove reports no IP.
func (c *DatabaseClient) toInstance(inst *instances.Instance) *cloud.Instance {
	out := &cloud.Instance{
		ID:             inst.ID,
		Name:           inst.Name,
		Status:         databaseStatuses.Translate(inst.Status),
		ProviderStatus: inst.Status,
		Addresses:      append([]string(nil), inst.IP...),
		Flavor:         inst.Flavor.ID,
		Created:        inst.Created,
	}
	if len(out.Addresses) == 0 && inst.Hostname != "" {
		out.Addresses = []string{inst.Hostname}
	}
	if inst.Datastore.Type != "" {
		out.ImageID = inst.Datastore.Type + "-" + inst.Datastore.Version
	}
	if id, ok := c.logicalID(inst.Name); ok {
		out.Tags = labels.NewLabelBuilder(id).WithInstanceName(inst.Name).Build()
	}
	return out
}

var (
	_ cloud.ControlPlane      = (*DatabaseClient)(nil)
	_ cloud.Inspector         = (*DatabaseClient)(nil)
	_ cloud.DatabaseInspector = (*DatabaseClient)(nil)
)
