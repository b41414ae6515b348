package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults used when an environment variable is unset or invalid, and when a
// Timeouts built in code leaves a field at zero.
const (
	DefaultPollInterval       = 5 * time.Second
	DefaultNetworkWait        = 180 * time.Second
	DefaultInstanceActive     = 120 * time.Second
	DefaultDatabaseActive     = 600 * time.Second
	DefaultInstanceDelete     = 120 * time.Second
	DefaultVolumeStatus       = 60 * time.Second
	DefaultVolumeDelete       = 600 * time.Second
	DefaultFloatingIPAttempts = 10
	DefaultRetryMaxAttempts   = 5
	DefaultRetryInitialDelay  = 1 * time.Second
)

// Timeouts holds all configurable wait bounds and retry knobs.
// These values can be customized via environment variables.
type Timeouts struct {
	PollInterval       time.Duration // Delay between status polls
	NetworkWait        time.Duration // Wait for an instance to receive an address
	InstanceActive     time.Duration // Wait for an instance to reach RUNNING
	DatabaseActive     time.Duration // Wait for a database instance to reach RUNNING
	InstanceDelete     time.Duration // Wait for an instance delete to be confirmed
	VolumeStatus       time.Duration // Wait for a volume to become AVAILABLE or IN_USE
	VolumeDelete       time.Duration // Wait for a volume delete to be confirmed
	FloatingIPAttempts int           // Floating IP allocate and associate attempts
	RetryMaxAttempts   int           // Maximum number of retry attempts for control plane calls
	RetryInitialDelay  time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - FLEETALLOC_POLL_INTERVAL (default: 5s)
//   - FLEETALLOC_TIMEOUT_NETWORK (default: 180s)
//   - FLEETALLOC_TIMEOUT_INSTANCE_ACTIVE (default: 120s)
//   - FLEETALLOC_TIMEOUT_DATABASE_ACTIVE (default: 600s)
//   - FLEETALLOC_TIMEOUT_INSTANCE_DELETE (default: 120s)
//   - FLEETALLOC_TIMEOUT_VOLUME_STATUS (default: 60s)
//   - FLEETALLOC_TIMEOUT_VOLUME_DELETE (default: 600s)
//   - FLEETALLOC_FLOATING_IP_ATTEMPTS (default: 10)
//   - FLEETALLOC_RETRY_MAX_ATTEMPTS (default: 5)
//   - FLEETALLOC_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PollInterval:       parseDuration("FLEETALLOC_POLL_INTERVAL", DefaultPollInterval),
		NetworkWait:        parseDuration("FLEETALLOC_TIMEOUT_NETWORK", DefaultNetworkWait),
		InstanceActive:     parseDuration("FLEETALLOC_TIMEOUT_INSTANCE_ACTIVE", DefaultInstanceActive),
		DatabaseActive:     parseDuration("FLEETALLOC_TIMEOUT_DATABASE_ACTIVE", DefaultDatabaseActive),
		InstanceDelete:     parseDuration("FLEETALLOC_TIMEOUT_INSTANCE_DELETE", DefaultInstanceDelete),
		VolumeStatus:       parseDuration("FLEETALLOC_TIMEOUT_VOLUME_STATUS", DefaultVolumeStatus),
		VolumeDelete:       parseDuration("FLEETALLOC_TIMEOUT_VOLUME_DELETE", DefaultVolumeDelete),
		FloatingIPAttempts: parseInt("FLEETALLOC_FLOATING_IP_ATTEMPTS", DefaultFloatingIPAttempts),
		RetryMaxAttempts:   parseInt("FLEETALLOC_RETRY_MAX_ATTEMPTS", DefaultRetryMaxAttempts),
		RetryInitialDelay:  parseDuration("FLEETALLOC_RETRY_INITIAL_DELAY", DefaultRetryInitialDelay),
	}
}

// Defaulted returns a copy of t in which every zero or negative field is
// replaced by its default. A nil receiver yields LoadTimeouts().
func (t *Timeouts) Defaulted() *Timeouts {
	if t == nil {
		return LoadTimeouts()
	}
	out := *t
	orDuration(&out.PollInterval, DefaultPollInterval)
	orDuration(&out.NetworkWait, DefaultNetworkWait)
	orDuration(&out.InstanceActive, DefaultInstanceActive)
	orDuration(&out.DatabaseActive, DefaultDatabaseActive)
	orDuration(&out.InstanceDelete, DefaultInstanceDelete)
	orDuration(&out.VolumeStatus, DefaultVolumeStatus)
	orDuration(&out.VolumeDelete, DefaultVolumeDelete)
	orDuration(&out.RetryInitialDelay, DefaultRetryInitialDelay)
	if out.FloatingIPAttempts < 1 {
		out.FloatingIPAttempts = DefaultFloatingIPAttempts
	}
	if out.RetryMaxAttempts < 1 {
		out.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	return &out
}

func orDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set, unparseable or not positive, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set, unparseable or below 1, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}

	return i
}
