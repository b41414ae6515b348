// Package openstack implements the control plane on top of Nova, Cinder and
// Neutron via gophercloud.
//
// Instances are Nova servers carrying their tags as metadata, volumes are
// Cinder v3 volumes attached through Nova, and floating IP pools are Neutron
// external networks. Like the Hetzner adapter, every call returns as soon as
// the request is accepted; waiting is left to the caller's poller.
package openstack
