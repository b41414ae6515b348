// Package config loads the fleetalloc configuration file.
//
// A [Config] names the control plane provider, its credentials and the
// instance [Template] that allocation requests are made against. Wait
// bounds and retry knobs come from the environment through [LoadTimeouts].
package config
