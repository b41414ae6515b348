package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/imamik/fleetalloc/internal/allocation"
	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/cloud/fake"
	"github.com/imamik/fleetalloc/internal/config"
)

func testTemplate() config.Template {
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

// stubEnv swaps the factories for an in-memory control plane and returns
// the captured stdout.
func stubEnv(t *testing.T, cp *fake.ControlPlane, tmpl config.Template) *bytes.Buffer {
	t.Helper()
	origLoad, origCP := loadConfig, newControlPlane
	origOut, origErr, origClk := stdout, stderr, clk
	t.Cleanup(func() {
		loadConfig, newControlPlane = origLoad, origCP
		stdout, stderr, clk = origOut, origErr, origClk
	})

	loadConfig = func(string) (*config.Config, error) {
		return &config.Config{Provider: config.ProviderOpenStack, Template: tmpl}, nil
	}
	newControlPlane = func(*config.Config, *config.Timeouts, logr.Logger) (ControlPlane, error) {
		return cp, nil
	}
	out := &bytes.Buffer{}
	stdout = out
	stderr = io.Discard
	clk = testclock.NewDilatedWallClock(time.Millisecond)
	return out
}

func TestAllocate(t *testing.T) {
	cp := fake.New()
	out := stubEnv(t, cp, testTemplate())
	metricsFile := filepath.Join(t.TempDir(), "fleetalloc.prom")

	err := Allocate(context.Background(), Options{Output: OutputJSON, MetricsFile: metricsFile}, 2, []string{"a", "b"})
	require.NoError(t, err)

	var result allocation.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, []string{"a", "b"}, result.LogicalIDs())
	assert.Equal(t, "director-a", result.Instances[0].Name)
	assert.Len(t, cp.InstancesFor("a"), 1)

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `fleetalloc_allocation_total{result="success"} 1`)
}

func TestAllocate_PreflightFails(t *testing.T) {
	tmpl := testTemplate()
	tmpl.AvailabilityZone = "mars"
	cp := fake.New()
	stubEnv(t, cp, tmpl)

	err := Allocate(context.Background(), Options{}, 1, []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template.availabilityZone")
	assert.Empty(t, cp.Calls(), "nothing may be created when validation fails")
}

func TestAllocate_BelowMinCount(t *testing.T) {
	cp := fake.New()
	cp.SetBehavior("b", fake.Behavior{NoAddress: true})
	out := stubEnv(t, cp, testTemplate())

	err := Allocate(context.Background(), Options{}, 2, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, allocation.IsUnrecoverable(err))
	assert.Empty(t, out.String(), "nothing is printed after a full rollback")
	assert.Empty(t, cp.InstancesFor("a"))
	assert.Empty(t, cp.InstancesFor("b"))
}

func TestAllocate_Table(t *testing.T) {
	cp := fake.New()
	cp.SetBehavior("b", fake.Behavior{NoAddress: true})
	out := stubEnv(t, cp, testTemplate())

	err := Allocate(context.Background(), Options{Output: OutputTable}, 1, []string{"a", "b"})
	require.Error(t, err, "a partial allocation still reports its conditions")
	assert.True(t, allocation.IsUnrecoverable(err))
	assert.Contains(t, out.String(), "LOGICAL ID")
	assert.Contains(t, out.String(), "director-a")
	assert.Contains(t, out.String(), "rolled back: b")
}

func TestDelete(t *testing.T) {
	cp := fake.New()
	stubEnv(t, cp, testTemplate())

	require.NoError(t, Allocate(context.Background(), Options{}, 1, []string{"a"}))
	require.Len(t, cp.InstancesFor("a"), 1)

	require.NoError(t, Delete(context.Background(), Options{}, []string{"a", "never-allocated"}))
	assert.Empty(t, cp.InstancesFor("a"))
}

func TestFindAndState(t *testing.T) {
	cp := fake.New()
	out := stubEnv(t, cp, testTemplate())
	require.NoError(t, Allocate(context.Background(), Options{}, 1, []string{"a"}))

	out.Reset()
	require.NoError(t, Find(context.Background(), Options{Output: OutputJSON}, []string{"a", "b"}))
	var found []foundView
	require.NoError(t, json.Unmarshal(out.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].LogicalID)
	assert.NotEmpty(t, found[0].Properties[allocation.PropPrivateIPAddress])

	out.Reset()
	require.NoError(t, State(context.Background(), Options{Output: OutputYAML}, []string{"a", "b", "a"}))
	var states []stateView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "a", states[0].LogicalID)
	assert.NotEqual(t, cloud.StatusDeleted, states[0].Status)
	assert.Equal(t, stateView{LogicalID: "b", Status: cloud.StatusDeleted}, states[1])
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out := stubEnv(t, fake.New(), testTemplate())
		require.NoError(t, Validate(context.Background(), Options{}))
		assert.Contains(t, out.String(), "template is valid")
	})

	t.Run("database template", func(t *testing.T) {
		tmpl := config.Template{
			Flavor:             "db.small",
			InstanceNamePrefix: "analytics",
			Database: &config.DatabaseTemplate{
				Datastore: "mysql", Version: "8.0", VolumeSize: 5, Username: "admin", Password: "s3cret",
			},
		}
		out := stubEnv(t, fake.New(), tmpl)

		err := Validate(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, out.String(), "template.database.version")
	})

	t.Run("missing key pair", func(t *testing.T) {
		tmpl := testTemplate()
		tmpl.KeyName = "nobody"
		out := stubEnv(t, fake.New(), tmpl)

		err := Validate(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, out.String(), "template.keyName")
	})
}

func TestNewEnv_Errors(t *testing.T) {
	stubEnv(t, fake.New(), testTemplate())

	_, err := newEnv(Options{LogFormat: "xml"})
	assert.ErrorContains(t, err, "unknown log format")

	loadConfig = func(string) (*config.Config, error) { return nil, assert.AnError }
	_, err = newEnv(Options{})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewControlPlane(t *testing.T) {
	cp, err := newControlPlane(&config.Config{
		Provider: config.ProviderHCloud,
		HCloud:   config.HCloudConfig{Token: "token"},
	}, config.LoadTimeouts(), logr.Discard())
	require.NoError(t, err)
	assert.NotNil(t, cp)

	_, err = newControlPlane(&config.Config{Provider: "aws"}, config.LoadTimeouts(), logr.Discard())
	assert.ErrorContains(t, err, `unsupported provider "aws"`)

	_, err = newControlPlane(&config.Config{
		Provider: config.ProviderTrove,
		Template: config.Template{InstanceNamePrefix: "analytics"},
	}, config.LoadTimeouts(), logr.Discard())
	assert.ErrorContains(t, err, "failed to authenticate", "trove shares the openstack credentials")
}

func TestRender_UnknownFormat(t *testing.T) {
	err := render(io.Discard, "xml", nil, nil)
	assert.ErrorContains(t, err, "unknown output format")
}
