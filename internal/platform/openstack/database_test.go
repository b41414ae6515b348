package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	th "github.com/gophercloud/gophercloud/testhelper"
	fakeclient "github.com/gophercloud/gophercloud/testhelper/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

const databaseA = `{
	"id": "db-a",
	"name": "analytics-a",
	"status": "ACTIVE",
	"created": "2024-05-01T08:00:00",
	"updated": "2024-05-01T08:05:00",
	"flavor": {"id": "fl-1"},
	"ip": ["10.0.0.9"],
	"volume": {"size": 5},
	"datastore": {"type": "mysql", "version": "5.7"}
}`

const databaseBuilding = `{
	"id": "db-b",
	"name": "analytics-b",
	"status": "BUILD",
	"created": "2024-05-01T08:00:00",
	"updated": "2024-05-01T08:00:00",
	"flavor": {"id": "fl-1"},
	"hostname": "db-b.internal",
	"volume": {"size": 5},
	"datastore": {"type": "mysql", "version": "5.7"}
}`

const databaseForeign = `{
	"id": "db-x",
	"name": "reporting",
	"status": "ACTIVE",
	"created": "2024-05-01T08:00:00",
	"updated": "2024-05-01T08:00:00",
	"flavor": {"id": "fl-1"},
	"volume": {"size": 1},
	"datastore": {"type": "postgresql", "version": "12"}
}`

func newTestDatabaseClient(t *testing.T) *DatabaseClient {
	c := newTestClient(t)
	dc, err := NewDatabaseClient(c, "analytics", WithDatabaseServiceClient(fakeclient.ServiceClient()))
	require.NoError(t, err)
	return dc
}

func TestDatabase_GetInstance(t *testing.T) {
	c := newTestDatabaseClient(t)
	handle(t, "/instances/db-a", http.MethodGet, http.StatusOK, `{"instance": `+databaseA+`}`)
	handle(t, "/instances/db-b", http.MethodGet, http.StatusOK, `{"instance": `+databaseBuilding+`}`)
	handle(t, "/instances/gone", http.MethodGet, http.StatusNotFound, "")
	ctx := context.Background()

	inst, err := c.GetInstance(ctx, "db-a")
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusRunning, inst.Status)
	assert.Equal(t, "ACTIVE", inst.ProviderStatus)
	assert.Equal(t, []string{"10.0.0.9"}, inst.Addresses)
	assert.Equal(t, "fl-1", inst.Flavor)
	assert.Equal(t, "mysql-5.7", inst.ImageID)
	id, ok := labels.LogicalID(inst.Tags)
	require.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, "analytics-a", inst.Tags[labels.KeyInstanceName])

	inst, err = c.GetInstance(ctx, "db-b")
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusPending, inst.Status)
	assert.Equal(t, []string{"db-b.internal"}, inst.Addresses, "hostname stands in for a missing IP")

	_, err = c.GetInstance(ctx, "gone")
	assert.True(t, cloud.IsNotFound(err))
}

func TestDatabase_ListInstances_OnlyPrefixed(t *testing.T) {
	c := newTestDatabaseClient(t)
	handle(t, "/instances", http.MethodGet, http.StatusOK,
		`{"instances": [`+databaseA+`, `+databaseForeign+`, `+databaseBuilding+`]}`)

	all, err := c.ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "db-a", all[0].ID)
	assert.Equal(t, "db-b", all[1].ID)
}

func TestDatabase_CreateInstance(t *testing.T) {
	c := newTestDatabaseClient(t)
	handle(t, "/flavors/detail", http.MethodGet, http.StatusOK,
		`{"flavors": [{"id": "fl-1", "name": "db.small"}]}`)
	handle(t, "/networks", http.MethodGet, http.StatusOK,
		`{"networks": [{"id": "net-1", "name": "private"}]}`)

	var req struct {
		Instance map[string]any `json:"instance"`
	}
	th.Mux.HandleFunc("/instances", func(w http.ResponseWriter, r *http.Request) {
		th.TestMethod(t, r, http.MethodPost)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reply(w, http.StatusOK, `{"instance": `+databaseBuilding+`}`)
	})

	id, err := c.CreateInstance(context.Background(), cloud.CreateInstanceOpts{
		Name:    "analytics-b",
		Flavor:  "db.small",
		Network: "private",
		Tags:    labels.NewLabelBuilder("b").Build(),
		Database: &cloud.DatabaseOpts{
			Datastore: "mysql", Version: "5.7", VolumeSize: 5, Username: "admin", Password: "s3cret",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "db-b", id)

	in := req.Instance
	assert.Equal(t, "analytics-b", in["name"])
	assert.Equal(t, "fl-1", in["flavorRef"])
	assert.Equal(t, map[string]any{"size": float64(5)}, in["volume"])
	assert.Equal(t, map[string]any{"type": "mysql", "version": "5.7"}, in["datastore"])
	assert.Contains(t, fmt.Sprint(in["nics"]), "net-1")
	users, ok := in["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].(map[string]any)["name"])
}

func TestDatabase_CreateInstanceNeedsDatabaseOpts(t *testing.T) {
	c := newTestDatabaseClient(t)

	_, err := c.CreateInstance(context.Background(), cloud.CreateInstanceOpts{Name: "analytics-a", Flavor: "db.small"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database options are required")
}

func TestDatabase_DeleteInstance(t *testing.T) {
	c := newTestDatabaseClient(t)
	handle(t, "/instances/db-a", http.MethodDelete, http.StatusAccepted, "")
	handle(t, "/instances/gone", http.MethodDelete, http.StatusNotFound, "")

	require.NoError(t, c.DeleteInstance(context.Background(), "db-a"))
	require.NoError(t, c.DeleteInstance(context.Background(), "gone"), "missing instances are already deleted")
}

func TestDatabase_Inspector(t *testing.T) {
	c := newTestDatabaseClient(t)
	handle(t, "/flavors/detail", http.MethodGet, http.StatusOK,
		`{"flavors": [{"id": "fl-1", "name": "db.small"}]}`)
	handle(t, "/datastores", http.MethodGet, http.StatusOK, `{"datastores": [{
		"id": "ds-1", "name": "mysql", "default_version": "v-57",
		"versions": [{"id": "v-57", "name": "5.7"}, {"id": "v-80", "name": "8.0"}]
	}]}`)
	ctx := context.Background()

	ok, err := c.FlavorExists(ctx, "db.small")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.FlavorExists(ctx, "db.huge")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.DatastoreVersionExists(ctx, "mysql", "8.0")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.DatastoreVersionExists(ctx, "mysql", "v-57")
	require.NoError(t, err)
	assert.True(t, ok, "versions match by ID too")
	ok, err = c.DatastoreVersionExists(ctx, "postgresql", "12")
	require.NoError(t, err)
	assert.False(t, ok)

	caps, err := c.Capabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, cloud.Capabilities{}, caps)
}

func TestNewDatabaseClient_Unauthenticated(t *testing.T) {
	c := newTestClient(t)

	_, err := NewDatabaseClient(c, "analytics")
	assert.ErrorIs(t, err, cloud.ErrCapabilityMissing)
}
