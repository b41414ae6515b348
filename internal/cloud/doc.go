// Package cloud defines the compute control plane that fleetalloc provisions against.
//
// The control plane is treated as an eventually consistent, asynchronous remote
// service: every mutating call returns before its effect is durable, so callers
// discover state by polling Get and List calls.
//
// Provider adapters live under internal/platform:
//
//   - internal/platform/hcloud: Hetzner Cloud (servers, volumes, floating IPs)
//   - internal/platform/openstack: OpenStack (Nova, Cinder, Neutron)
//
// Every adapter reports provider statuses through a StatusTable so that the rest of
// the module only ever sees the canonical Status and VolumeStatus values.
package cloud
