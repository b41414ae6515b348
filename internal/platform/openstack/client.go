package openstack

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/gophercloud/gophercloud"
	goopenstack "github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/common/extensions"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
	"github.com/imamik/fleetalloc/internal/util/retry"
)

// Client implements cloud.ControlPlane and cloud.Inspector for OpenStack.
// A nil volumes or network service client means the cloud does not offer
// that service.
type Client struct {
	compute *gophercloud.ServiceClient
	volumes *gophercloud.ServiceClient
	network *gophercloud.ServiceClient

	// provider and endpoint let further service clients be built later.
	provider *gophercloud.ProviderClient
	endpoint gophercloud.EndpointOpts

	timeouts *config.Timeouts
	log      logr.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithServiceClients sets pre-built service clients and skips authentication.
func WithServiceClients(compute, volumes, network *gophercloud.ServiceClient) ClientOption {
	return func(c *Client) {
		c.compute = compute
		c.volumes = volumes
		c.network = network
	}
}

// WithTimeouts sets the retry bounds for conflicting requests.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *Client) {
		c.timeouts = t.Defaulted()
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient authenticates against Keystone and builds the compute, block
// storage and network clients for the configured region.
func NewClient(cfg config.OpenStackConfig, opts ...ClientOption) (*Client, error) {
	c := &Client{
		timeouts: config.LoadTimeouts(),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.compute != nil {
		return c, nil
	}

	provider, err := goopenstack.AuthenticatedClient(gophercloud.AuthOptions{
		IdentityEndpoint: cfg.IdentityEndpoint,
		Username:         cfg.Username,
		Password:         cfg.Password,
		DomainName:       cfg.DomainName,
		TenantName:       cfg.TenantName,
		TenantID:         cfg.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	eo := gophercloud.EndpointOpts{Region: cfg.Region, Availability: gophercloud.AvailabilityPublic}
	c.provider, c.endpoint = provider, eo
	if c.compute, err = goopenstack.NewComputeV2(provider, eo); err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}
	if c.volumes, err = goopenstack.NewBlockStorageV3(provider, eo); err != nil {
		if !isEndpointNotFound(err) {
			return nil, fmt.Errorf("failed to get block storage client: %w", err)
		}
		c.log.Info("block storage service not found, volumes are unavailable", "region", cfg.Region)
		c.volumes = nil
	}
	if c.network, err = goopenstack.NewNetworkV2(provider, eo); err != nil {
		if !isEndpointNotFound(err) {
			return nil, fmt.Errorf("failed to get network client: %w", err)
		}
		c.log.Info("network service not found, floating IPs are unavailable", "region", cfg.Region)
		c.network = nil
	}
	return c, nil
}

// Capabilities implements cloud.ControlPlane. Volume attachment needs the
// block storage service, floating IPs need Neutron's router extension.
func (c *Client) Capabilities(context.Context) (cloud.Capabilities, error) {
	caps := cloud.Capabilities{VolumeAttach: c.volumes != nil}
	if c.network == nil {
		return caps, nil
	}
	if _, err := extensions.Get(c.network, "router").Extract(); err != nil {
		if isNotFound(err) {
			return caps, nil
		}
		return caps, fmt.Errorf("failed to get router extension: %w", err)
	}
	caps.FloatingIP = true
	return caps, nil
}

// withRetry retries op while the API reports a conflict or is temporarily
// unavailable. Every other error ends the retry.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		err := op()
		if err == nil || isRetryable(err) {
			return err
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts-1),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

func (c *Client) requireVolumes() error {
	if c.volumes == nil {
		return fmt.Errorf("block storage: %w", cloud.ErrCapabilityMissing)
	}
	return nil
}

func (c *Client) requireNetwork() error {
	if c.network == nil {
		return fmt.Errorf("network: %w", cloud.ErrCapabilityMissing)
	}
	return nil
}

// managed reports whether a metadata set carries a logical ID.
func managed(metadata map[string]string) bool {
	_, ok := labels.LogicalID(metadata)
	return ok
}

var (
	_ cloud.ControlPlane = (*Client)(nil)
	_ cloud.Inspector    = (*Client)(nil)
)
