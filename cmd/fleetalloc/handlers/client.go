package handlers

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/platform/hcloud"
	"github.com/imamik/fleetalloc/internal/platform/openstack"
)

// ControlPlane is a control plane that can also inspect template references.
type ControlPlane interface {
	cloud.ControlPlane
	cloud.Inspector
}

// Factory function variables, replaced in tests.
var (
	loadConfig = config.LoadFile

	newControlPlane = func(cfg *config.Config, timeouts *config.Timeouts, log logr.Logger) (ControlPlane, error) {
		switch cfg.Provider {
		case config.ProviderHCloud:
			return hcloud.NewClient(cfg.HCloud,
				hcloud.WithTimeouts(timeouts),
				hcloud.WithLogger(log)), nil
		case config.ProviderOpenStack:
			return openstack.NewClient(cfg.OpenStack,
				openstack.WithTimeouts(timeouts),
				openstack.WithLogger(log))
		case config.ProviderTrove:
			return openstack.NewTroveClient(cfg.OpenStack, cfg.Template.InstanceNamePrefix,
				openstack.WithTimeouts(timeouts),
				openstack.WithLogger(log))
		default:
			return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
		}
	}
)
