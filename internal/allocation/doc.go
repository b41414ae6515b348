// Package allocation provisions and releases batches of instances.
//
// An [Orchestrator] creates one instance per caller-chosen logical ID, waits
// for every instance to get an address, optionally attaches a floating IP
// and volumes, and checks the batch against a minimum count. Instances that
// fail a step are released through the [Releaser], which deletes floating
// IPs, then instances, then volumes.
//
// Nothing is persisted locally. Every created instance and volume carries
// its logical ID as a tag and the [Resolver] recovers the mapping from a
// full listing on each call. Allocate begins by releasing whatever the
// requested IDs still own, which makes retries safe.
//
// Per-resource failures are collected as [Conditions] and never interrupt
// the loop that produced them. Any recorded condition turns the call into an
// [UnrecoverableError].
package allocation
