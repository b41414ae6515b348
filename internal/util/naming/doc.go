// Package naming provides the naming scheme for instances and volumes.
//
// Instances are named {prefix}-{logicalID} and volumes {instance}-vol-{n}.
// Names are informational only; identity always comes from tags.
package naming
