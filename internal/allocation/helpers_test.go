package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetalloc/internal/cloud/fake"
	"github.com/imamik/fleetalloc/internal/config"
)

// testTimeouts keeps the production bounds; the dilated clock turns one
// second into one millisecond.
func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		PollInterval:       5 * time.Second,
		NetworkWait:        180 * time.Second,
		InstanceActive:     120 * time.Second,
		DatabaseActive:     600 * time.Second,
		InstanceDelete:     120 * time.Second,
		VolumeStatus:       60 * time.Second,
		VolumeDelete:       600 * time.Second,
		FloatingIPAttempts: 10,
		RetryMaxAttempts:   3,
		RetryInitialDelay:  time.Second,
	}
}

func newTestOrchestrator(t *testing.T, cp *fake.ControlPlane, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithClock(testclock.NewDilatedWallClock(time.Millisecond)),
		WithTimeouts(testTimeouts()),
		WithLogger(testr.New(t)),
	}
	return New(cp, append(base, opts...)...)
}

func plainTemplate() config.Template {
	return config.Template{
		Image:              "centos-7",
		Flavor:             "m1.small",
		Network:            "private",
		AvailabilityZone:   "nova",
		SecurityGroups:     "default",
		KeyName:            "director",
		InstanceNamePrefix: "director",
	}
}

func volumeTemplate() config.Template {
	tmpl := plainTemplate()
	tmpl.VolumeNumber = 2
	tmpl.VolumeSize = 10
	return tmpl
}

func fullTemplate() config.Template {
	tmpl := volumeTemplate()
	tmpl.FloatingIPPool = "public"
	return tmpl
}

func databaseTemplate() config.Template {
	return config.Template{
		Flavor:             "db.small",
		AvailabilityZone:   "nova",
		InstanceNamePrefix: "analytics",
		Database: &config.DatabaseTemplate{
			Datastore:  "mysql",
			Version:    "5.7",
			VolumeSize: 5,
			Username:   "admin",
			Password:   "s3cret",
		},
	}
}

// requireReleased asserts that nothing tagged with the logical IDs remains.
func requireReleased(t *testing.T, cp *fake.ControlPlane, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.Empty(t, cp.InstancesFor(id), "instances left for %s", id)
		require.Empty(t, cp.VolumesFor(id), "volumes left for %s", id)
		require.Empty(t, cp.FloatingIPsFor(id), "floating IPs left for %s", id)
	}
}

func conditionKeys(err error) []string {
	ue, ok := err.(*UnrecoverableError)
	if !ok {
		return nil
	}
	var keys []string
	for _, c := range ue.Conditions {
		keys = append(keys, c.Key)
	}
	return keys
}

func ctx() context.Context {
	return context.Background()
}
