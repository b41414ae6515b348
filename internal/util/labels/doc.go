// Package labels builds the tag sets fleetalloc attaches to every instance and
// volume it creates.
//
// Tags are the only link between a caller's logical instance ID and the provider
// resources created for it. KeyLogicalID must be present on everything fleetalloc
// creates, otherwise cleanup cannot find the resource again.
package labels
