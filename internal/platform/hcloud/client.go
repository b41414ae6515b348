package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
	"github.com/imamik/fleetalloc/internal/util/retry"
)

// Client implements cloud.ControlPlane and cloud.Inspector for Hetzner Cloud.
type Client struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
	log      logr.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeouts sets the retry bounds for locked resources.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *Client) {
		c.timeouts = t.Defaulted()
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client from the hcloud section of the configuration.
func NewClient(cfg config.HCloudConfig, opts ...ClientOption) *Client {
	hopts := []hcloud.ClientOption{
		hcloud.WithToken(cfg.Token),
		hcloud.WithApplication("fleetalloc", ""),
	}
	if cfg.Endpoint != "" {
		hopts = append(hopts, hcloud.WithEndpoint(cfg.Endpoint))
	}

	c := &Client{
		client:   hcloud.NewClient(hopts...),
		timeouts: config.LoadTimeouts(),
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client.
func (c *Client) HCloudClient() *hcloud.Client {
	return c.client
}

// Capabilities implements cloud.ControlPlane. Hetzner always offers volumes
// and floating IPs.
func (c *Client) Capabilities(context.Context) (cloud.Capabilities, error) {
	return cloud.Capabilities{VolumeAttach: true, FloatingIP: true}, nil
}

// withRetry retries op while the API reports a locked resource or a rate
// limit. Every other error ends the retry.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	return retry.WithExponentialBackoff(ctx, func() error {
		err := op()
		if err == nil || retryable(err) {
			return err
		}
		return retry.Fatal(err)
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts-1),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

// managedListOpts selects every resource carrying a logical ID.
func managedListOpts() hcloud.ListOpts {
	return hcloud.ListOpts{LabelSelector: labels.SelectorForManaged()}
}

func parseID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, cloud.NotFoundError(kind, id)
	}
	return n, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// lookup resolves a named dependency and fails when it does not exist.
func lookup[T any](ctx context.Context, kind, name string,
	get func(context.Context, string) (*T, *hcloud.Response, error)) (*T, error) {
	obj, _, err := get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, name, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%s not found: %s", kind, name)
	}
	return obj, nil
}

var (
	_ cloud.ControlPlane = (*Client)(nil)
	_ cloud.Inspector    = (*Client)(nil)
)
