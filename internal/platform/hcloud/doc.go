// Package hcloud implements the control plane on top of the Hetzner Cloud API.
//
// # Mapping
//
//   - instances are servers; tags are labels
//   - flavors are server types and availability zones are locations
//   - security groups are firewalls, looked up by name
//   - floating IP pools are home locations
//
// Hetzner has no attaching state. A volume reports IN_USE once the API shows
// it bound to a server.
//
// # Calls
//
// Create, attach and assign calls return as soon as the API accepts them.
// Waiting for the resulting state is left to the caller's poller. Deletes go
// through [DeleteOperation], which is idempotent and retries while the
// resource is locked by a running action.
package hcloud
