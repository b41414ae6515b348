package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/hetznercloud/hcloud-go/v2/hcloud/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

// testServer mocks the Hetzner Cloud API.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	mux := http.NewServeMux()
	ts := &testServer{server: httptest.NewServer(mux), mux: mux}
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client(t *testing.T) *Client {
	return NewClient(config.HCloudConfig{Token: "test-token"},
		WithHCloudClient(hcloud.NewClient(
			hcloud.WithToken("test-token"),
			hcloud.WithEndpoint(ts.server.URL),
		)),
		WithTimeouts(&config.Timeouts{RetryMaxAttempts: 1, RetryInitialDelay: time.Millisecond}),
		WithLogger(testr.New(t)),
	)
}

func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func notFound(w http.ResponseWriter) {
	jsonResponse(w, http.StatusNotFound, schema.ErrorResponse{
		Error: schema.Error{Code: string(hcloud.ErrorCodeNotFound), Message: "not found"},
	})
}

// byName serves a list endpoint that filters on the name query parameter.
func byName[T any](names map[string]T, wrap func([]T) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []T
		if item, ok := names[r.URL.Query().Get("name")]; ok {
			items = append(items, item)
		}
		jsonResponse(w, http.StatusOK, wrap(items))
	}
}

func testSchemaServer() schema.Server {
	image := "ubuntu-24.04"
	return schema.Server{
		ID:      42,
		Name:    "director-a",
		Status:  "running",
		Created: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		PublicNet: schema.ServerPublicNet{
			IPv4: schema.ServerPublicNetIPv4{IP: "198.51.100.4"},
		},
		PrivateNet: []schema.ServerPrivateNet{{Network: 7, IP: "10.0.0.2"}},
		ServerType: schema.ServerType{ID: 1, Name: "cx22"},
		Image:      &schema.Image{ID: 3, Name: &image},
		Datacenter: schema.Datacenter{Name: "fsn1-dc14", Location: schema.Location{Name: "fsn1"}},
		Labels:     labels.NewLabelBuilder("a").Build(),
	}
}

func TestClient_GetInstance(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/servers/42", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: testSchemaServer()})
	})
	ts.handleFunc("/servers/43", func(w http.ResponseWriter, _ *http.Request) {
		notFound(w)
	})
	c := ts.client(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		inst, err := c.GetInstance(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "42", inst.ID)
		assert.Equal(t, cloud.StatusRunning, inst.Status)
		assert.Equal(t, "running", inst.ProviderStatus)
		assert.Equal(t, []string{"10.0.0.2", "198.51.100.4"}, inst.Addresses)
		assert.Equal(t, "7", inst.NetworkID)
		assert.Equal(t, "ubuntu-24.04", inst.ImageID)
		assert.Equal(t, "cx22", inst.Flavor)
		assert.Equal(t, "fsn1", inst.Zone)
		id, ok := labels.LogicalID(inst.Tags)
		assert.True(t, ok)
		assert.Equal(t, "a", id)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := c.GetInstance(ctx, "43")
		assert.True(t, cloud.IsNotFound(err))
	})

	t.Run("malformed id", func(t *testing.T) {
		_, err := c.GetInstance(ctx, "not-a-number")
		assert.True(t, cloud.IsNotFound(err))
	})
}

func TestClient_GetInstanceWithFloatingIP(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/servers/42", func(w http.ResponseWriter, _ *http.Request) {
		s := testSchemaServer()
		s.PublicNet.FloatingIPs = []int64{9}
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: s})
	})
	ts.handleFunc("/floating_ips/9", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.FloatingIPGetResponse{
			FloatingIP: schema.FloatingIP{ID: 9, IP: "203.0.113.9", Type: "ipv4"},
		})
	})

	inst, err := ts.client(t).GetInstance(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", inst.FloatingIP)
	assert.Equal(t, []string{"10.0.0.2", "198.51.100.4", "203.0.113.9"}, inst.Addresses)
}

func TestClient_ListInstances(t *testing.T) {
	ts := newTestServer(t)
	var selector string
	ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		selector = r.URL.Query().Get("label_selector")
		jsonResponse(w, http.StatusOK, schema.ServerListResponse{Servers: []schema.Server{testSchemaServer()}})
	})

	instances, err := ts.client(t).ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "42", instances[0].ID)
	assert.Equal(t, labels.KeyLogicalID, selector)
}

func TestClient_CreateInstance(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/server_types", byName(map[string]schema.ServerType{
		"cx22": {ID: 1, Name: "cx22", Architecture: "x86"},
	}, func(items []schema.ServerType) any { return schema.ServerTypeListResponse{ServerTypes: items} }))
	imageName := "ubuntu-24.04"
	ts.handleFunc("/images", byName(map[string]schema.Image{
		imageName: {ID: 3, Name: &imageName, Status: "available", Architecture: "x86"},
	}, func(items []schema.Image) any { return schema.ImageListResponse{Images: items} }))
	ts.handleFunc("/locations", byName(map[string]schema.Location{
		"fsn1": {ID: 1, Name: "fsn1"},
	}, func(items []schema.Location) any { return schema.LocationListResponse{Locations: items} }))
	ts.handleFunc("/ssh_keys", byName(map[string]schema.SSHKey{
		"director": {ID: 5, Name: "director"},
	}, func(items []schema.SSHKey) any { return schema.SSHKeyListResponse{SSHKeys: items} }))
	ts.handleFunc("/networks", byName(map[string]schema.Network{
		"private": {ID: 7, Name: "private", IPRange: "10.0.0.0/16"},
	}, func(items []schema.Network) any { return schema.NetworkListResponse{Networks: items} }))
	ts.handleFunc("/firewalls", byName(map[string]schema.Firewall{
		"default": {ID: 11, Name: "default"},
	}, func(items []schema.Firewall) any { return schema.FirewallListResponse{Firewalls: items} }))

	var req map[string]any
	ts.handleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		jsonResponse(w, http.StatusCreated, schema.ServerCreateResponse{
			Server: schema.Server{ID: 99, Name: "director-a", Status: "initializing"},
			Action: schema.Action{ID: 1, Status: "running", Command: "create_server"},
		})
	})

	tags := labels.NewLabelBuilder("a").WithInstanceName("director-a").Build()
	id, err := ts.client(t).CreateInstance(context.Background(), cloud.CreateInstanceOpts{
		Name:           "director-a",
		Image:          imageName,
		Flavor:         "cx22",
		Network:        "private",
		Zone:           "fsn1",
		KeyName:        "director",
		SecurityGroups: []string{"default"},
		Tags:           tags,
	})
	require.NoError(t, err)
	assert.Equal(t, "99", id)

	assert.Equal(t, "director-a", req["name"])
	assert.Equal(t, "a", req["labels"].(map[string]any)[labels.KeyLogicalID])
	assert.Equal(t, []any{float64(7)}, req["networks"])
	assert.Len(t, req["firewalls"], 1)
}

func TestClient_CreateInstanceMissingDependency(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/server_types", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.ServerTypeListResponse{})
	})
	var created atomic.Int32
	ts.handleFunc("/servers", func(w http.ResponseWriter, _ *http.Request) {
		created.Add(1)
	})

	_, err := ts.client(t).CreateInstance(context.Background(), cloud.CreateInstanceOpts{
		Name: "director-a", Image: "ubuntu-24.04", Flavor: "cx99",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server type not found: cx99")
	assert.Zero(t, created.Load())
}

func TestClient_DeleteInstance(t *testing.T) {
	ts := newTestServer(t)
	var deletes atomic.Int32
	ts.handleFunc("/servers/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deletes.Add(1)
			jsonResponse(w, http.StatusOK, schema.ServerDeleteResponse{
				Action: schema.Action{ID: 2, Status: "running", Command: "delete_server"},
			})
			return
		}
		jsonResponse(w, http.StatusOK, schema.ServerGetResponse{Server: testSchemaServer()})
	})
	ts.handleFunc("/servers/43", func(w http.ResponseWriter, _ *http.Request) {
		notFound(w)
	})
	c := ts.client(t)
	ctx := context.Background()

	require.NoError(t, c.DeleteInstance(ctx, "42"))
	assert.Equal(t, int32(1), deletes.Load())

	require.NoError(t, c.DeleteInstance(ctx, "43"), "missing servers are already deleted")
	require.NoError(t, c.DeleteInstance(ctx, "garbage"))
	assert.Equal(t, int32(1), deletes.Load())
}

func TestClient_Volumes(t *testing.T) {
	ts := newTestServer(t)
	server := int64(42)
	ts.handleFunc("/volumes/1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonResponse(w, http.StatusOK, schema.VolumeGetResponse{Volume: schema.Volume{
			ID: 1, Name: "director-a-vol-1", Status: "available", Size: 10, Server: &server,
			Location: schema.Location{Name: "fsn1"}, Labels: labels.NewLabelBuilder("a").Build(),
		}})
	})
	ts.handleFunc("/volumes/2", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, schema.VolumeGetResponse{Volume: schema.Volume{
			ID: 2, Name: "director-a-vol-2", Status: "creating", Size: 10,
		}})
	})
	ts.handleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, labels.KeyLogicalID, r.URL.Query().Get("label_selector"))
		jsonResponse(w, http.StatusOK, schema.VolumeListResponse{Volumes: []schema.Volume{
			{ID: 3, Name: "director-b-vol-1", Status: "available", Size: 10},
		}})
	})
	c := ts.client(t)
	ctx := context.Background()

	vol, err := c.GetVolume(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, cloud.VolumeInUse, vol.Status)
	assert.Equal(t, "42", vol.InstanceID)
	assert.Equal(t, "fsn1", vol.Zone)

	vol, err = c.GetVolume(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, cloud.VolumeCreating, vol.Status)

	vols, err := c.ListVolumes(ctx)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, cloud.VolumeAvailable, vols[0].Status)

	require.NoError(t, c.DeleteVolume(ctx, "1"))
}

func TestClient_CreateAndAttachVolume(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/locations", byName(map[string]schema.Location{
		"fsn1": {ID: 1, Name: "fsn1"},
	}, func(items []schema.Location) any { return schema.LocationListResponse{Locations: items} }))

	var created map[string]any
	ts.handleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		jsonResponse(w, http.StatusCreated, schema.VolumeCreateResponse{
			Volume: schema.Volume{ID: 5, Name: "director-a-vol-1", Status: "creating", Size: 10},
		})
	})
	var attachedTo map[string]any
	ts.handleFunc("/volumes/5/actions/attach", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&attachedTo))
		jsonResponse(w, http.StatusCreated, schema.VolumeActionAttachVolumeResponse{
			Action: schema.Action{ID: 3, Status: "running", Command: "attach_volume"},
		})
	})
	c := ts.client(t)
	ctx := context.Background()

	_, err := c.CreateVolume(ctx, cloud.CreateVolumeOpts{Name: "director-a-vol-1", Size: 10})
	require.Error(t, err, "volumes need a location")

	id, err := c.CreateVolume(ctx, cloud.CreateVolumeOpts{
		Name: "director-a-vol-1", Size: 10, Zone: "fsn1", Tags: labels.NewLabelBuilder("a").Build(),
	})
	require.NoError(t, err)
	assert.Equal(t, "5", id)
	assert.Equal(t, float64(10), created["size"])

	require.NoError(t, c.AttachVolume(ctx, "5", "42"))
	assert.Equal(t, float64(42), attachedTo["server"])
}

func TestClient_FloatingIPs(t *testing.T) {
	ts := newTestServer(t)
	server := int64(42)
	ts.handleFunc("/floating_ips", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			jsonResponse(w, http.StatusCreated, schema.FloatingIPCreateResponse{
				FloatingIP: schema.FloatingIP{ID: 8, IP: "203.0.113.8", Type: "ipv4",
					HomeLocation: schema.Location{Name: "fsn1"}},
			})
			return
		}
		jsonResponse(w, http.StatusOK, schema.FloatingIPListResponse{FloatingIPs: []schema.FloatingIP{
			{ID: 8, IP: "203.0.113.8", Type: "ipv4", HomeLocation: schema.Location{Name: "fsn1"}},
			{ID: 9, IP: "203.0.113.9", Type: "ipv4", Server: &server, HomeLocation: schema.Location{Name: "fsn1"}},
		}})
	})
	var assigned atomic.Int32
	ts.handleFunc("/floating_ips/8/actions/assign", func(w http.ResponseWriter, _ *http.Request) {
		assigned.Add(1)
		jsonResponse(w, http.StatusCreated, schema.FloatingIPActionAssignResponse{
			Action: schema.Action{ID: 4, Status: "running", Command: "assign_floating_ip"},
		})
	})
	ts.handleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		locs := []schema.Location{{ID: 1, Name: "fsn1"}, {ID: 2, Name: "nbg1"}}
		if name := r.URL.Query().Get("name"); name != "" {
			locs = slices.DeleteFunc(locs, func(l schema.Location) bool { return l.Name != name })
		}
		jsonResponse(w, http.StatusOK, schema.LocationListResponse{Locations: locs})
	})
	c := ts.client(t)
	ctx := context.Background()

	fip, err := c.AllocateFloatingIP(ctx, "fsn1")
	require.NoError(t, err)
	assert.Equal(t, &cloud.FloatingIP{ID: "8", Address: "203.0.113.8", Pool: "fsn1"}, fip)

	// Pools are addressed by the names ListFloatingIPPools reports, never by ID.
	_, err = c.AllocateFloatingIP(ctx, "1")
	assert.ErrorContains(t, err, "location not found: 1")

	require.NoError(t, c.AssociateFloatingIP(ctx, "203.0.113.8", "42"))
	assert.Equal(t, int32(1), assigned.Load())

	err = c.AssociateFloatingIP(ctx, "192.0.2.1", "42")
	assert.True(t, cloud.IsNotFound(err))

	fips, err := c.ListFloatingIPs(ctx)
	require.NoError(t, err)
	require.Len(t, fips, 2)
	assert.Empty(t, fips[0].InstanceID)
	assert.Equal(t, "42", fips[1].InstanceID)

	pools, err := c.ListFloatingIPPools(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fsn1", "nbg1"}, pools)
}

func TestClient_Inspector(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/locations", byName(map[string]schema.Location{
		"fsn1": {ID: 1, Name: "fsn1"},
	}, func(items []schema.Location) any { return schema.LocationListResponse{Locations: items} }))
	imageName := "ubuntu-24.04"
	ts.handleFunc("/images", byName(map[string]schema.Image{
		imageName: {ID: 3, Name: &imageName, Status: "available"},
	}, func(items []schema.Image) any { return schema.ImageListResponse{Images: items} }))
	ts.handleFunc("/ssh_keys", byName(map[string]schema.SSHKey{
		"director": {ID: 5, Name: "director"},
	}, func(items []schema.SSHKey) any { return schema.SSHKeyListResponse{SSHKeys: items} }))
	ts.handleFunc("/firewalls", byName(map[string]schema.Firewall{
		"default": {ID: 11, Name: "default"},
	}, func(items []schema.Firewall) any { return schema.FirewallListResponse{Firewalls: items} }))
	c := ts.client(t)
	ctx := context.Background()

	ok, err := c.ZoneExists(ctx, "fsn1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.ZoneExists(ctx, "mars1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ImageReady(ctx, imageName)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.ImageReady(ctx, "windows")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.KeyPairExists(ctx, "director")
	require.NoError(t, err)
	assert.True(t, ok)

	missing, err := c.MissingSecurityGroups(ctx, []string{"default", "web"})
	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, missing)

	caps, err := c.Capabilities(ctx)
	require.NoError(t, err)
	assert.Equal(t, cloud.Capabilities{VolumeAttach: true, FloatingIP: true}, caps)
}
