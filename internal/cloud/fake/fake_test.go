package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/util/labels"
)

func TestInstanceLifecycle(t *testing.T) {
	c := New()
	ctx := context.Background()

	id, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Name: "director-a", Tags: labels.NewLabelBuilder("a").Build()})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, c.InstancesFor("a"))

	inst, err := c.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusRunning, inst.Status)
	assert.True(t, inst.HasAddress())

	require.NoError(t, c.DeleteInstance(ctx, id))
	_, err = c.GetInstance(ctx, id)
	assert.True(t, cloud.IsNotFound(err))
	assert.Empty(t, c.InstancesFor("a"))
	assert.Equal(t, []string{"CreateInstance a", "DeleteInstance " + id}, c.Calls())
}

func TestVolumeLifecycle(t *testing.T) {
	c := New()
	ctx := context.Background()

	iid, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Tags: labels.NewLabelBuilder("a").Build()})
	require.NoError(t, err)
	vid, err := c.CreateVolume(ctx, cloud.CreateVolumeOpts{Size: 10, Tags: labels.NewLabelBuilder("a").Build()})
	require.NoError(t, err)

	require.Error(t, c.AttachVolume(ctx, vid, iid), "volume still creating")

	vol, err := c.GetVolume(ctx, vid)
	require.NoError(t, err)
	require.Equal(t, cloud.VolumeAvailable, vol.Status)

	require.NoError(t, c.AttachVolume(ctx, vid, iid))
	vol, err = c.GetVolume(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, cloud.VolumeInUse, vol.Status)
	assert.Error(t, c.DeleteVolume(ctx, vid), "attached volumes cannot be deleted")

	c.RemoveInstance(iid)
	vol, err = c.GetVolume(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, cloud.VolumeAvailable, vol.Status)

	require.NoError(t, c.DeleteVolume(ctx, vid))
	assert.Empty(t, c.VolumesFor("a"))
	_, err = c.GetVolume(ctx, vid)
	assert.True(t, cloud.IsNotFound(err))
}

func TestFloatingIPs(t *testing.T) {
	c := New()
	ctx := context.Background()

	iid, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Tags: labels.NewLabelBuilder("a").Build()})
	require.NoError(t, err)
	fip, err := c.AllocateFloatingIP(ctx, "public")
	require.NoError(t, err)
	assert.Empty(t, c.FloatingIPsFor("a"))
	require.NoError(t, c.AssociateFloatingIP(ctx, fip.Address, iid))
	assert.Equal(t, []string{fip.ID}, c.FloatingIPsFor("a"))

	inst, err := c.GetInstance(ctx, iid)
	require.NoError(t, err)
	assert.Equal(t, fip.Address, inst.FloatingIP)

	c.RemoveInstance(iid)
	fips, err := c.ListFloatingIPs(ctx)
	require.NoError(t, err)
	require.Len(t, fips, 1)
	assert.Empty(t, fips[0].InstanceID)
	assert.Equal(t, []string{fip.ID}, c.FloatingIPsFor("a"), "disassociated IPs still belong to a")

	require.NoError(t, c.DeleteFloatingIP(ctx, fip.ID))
	assert.Zero(t, c.FloatingIPCount())
	assert.Empty(t, c.FloatingIPsFor("a"))
}

func TestFloatingIPsFor_FailedAssociation(t *testing.T) {
	c := New()
	c.SetBehavior("b", Behavior{AssociateFails: true})
	ctx := context.Background()

	iid, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Tags: labels.NewLabelBuilder("b").Build()})
	require.NoError(t, err)
	fip, err := c.AllocateFloatingIP(ctx, "public")
	require.NoError(t, err)
	require.NoError(t, c.AssociateFloatingIP(ctx, fip.Address, iid))

	fips, err := c.ListFloatingIPs(ctx)
	require.NoError(t, err)
	assert.Empty(t, fips[0].InstanceID)
	assert.Equal(t, []string{fip.ID}, c.FloatingIPsFor("b"))
}

func TestPutVolume_Deleting(t *testing.T) {
	c := New()
	ctx := context.Background()

	c.PutVolume(cloud.Volume{ID: "v-old", Status: cloud.VolumeDeleting, Tags: labels.NewLabelBuilder("a").Build()})
	assert.True(t, c.HasVolume("v-old"))

	_, err := c.GetVolume(ctx, "v-old")
	assert.True(t, cloud.IsNotFound(err))
	assert.False(t, c.HasVolume("v-old"))
}

func TestBehaviors(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.SetBehavior("a", Behavior{NoAddress: true})
	c.SetBehavior("b", Behavior{FailBoot: true})

	a, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Tags: labels.NewLabelBuilder("a").Build()})
	require.NoError(t, err)
	b, err := c.CreateInstance(ctx, cloud.CreateInstanceOpts{Tags: labels.NewLabelBuilder("b").Build()})
	require.NoError(t, err)

	inst, err := c.GetInstance(ctx, a)
	require.NoError(t, err)
	assert.False(t, inst.HasAddress())
	assert.Equal(t, cloud.StatusPending, inst.Status)

	inst, err = c.GetInstance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, cloud.StatusFailed, inst.Status)

	c.SetError("ListInstances", ErrInjected)
	_, err = c.ListInstances(ctx)
	assert.ErrorIs(t, err, ErrInjected)
}
