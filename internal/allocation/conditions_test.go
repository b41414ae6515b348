package allocation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditions(t *testing.T) {
	t.Parallel()

	conds := NewConditions(nil)
	conds.Add("instance.create", ResourceInstance, "a", nil)
	assert.Zero(t, conds.Len(), "nil errors are not recorded")

	conds.Warn("volume.leaked", ResourceVolume, "v-1", "cannot be deleted")
	assert.Equal(t, 1, conds.Len())
	assert.False(t, conds.HasErrors())

	conds.Add("instance.create", ResourceInstance, "a", errors.New("quota"))
	assert.Equal(t, 2, conds.Len())
	assert.True(t, conds.HasErrors())

	all := conds.All()
	all[0].Key = "mutated"
	assert.Equal(t, "volume.leaked", conds.All()[0].Key, "All returns a copy")
}

func TestConditions_NilSafe(t *testing.T) {
	t.Parallel()

	var conds *Conditions
	assert.NotPanics(t, func() {
		conds.Add("k", ResourceInstance, "", errors.New("x"))
		conds.Warn("k", ResourceInstance, "", "x")
	})
	assert.Zero(t, conds.Len())
	assert.False(t, conds.HasErrors())
	assert.Nil(t, conds.All())
}

func TestCondition_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		c    Condition
		want string
	}{
		{
			name: "error with id",
			c:    Condition{Severity: SeverityError, Key: "instance.delete", Resource: ResourceInstance, ID: "i-1", Err: errors.New("boom")},
			want: "[error] instance.delete instance i-1: boom",
		},
		{
			name: "warning",
			c:    Condition{Severity: SeverityWarning, Key: "volume.leaked", Resource: ResourceVolume, ID: "v-1", Message: "stuck"},
			want: "[warning] volume.leaked volume v-1: stuck",
		},
		{
			name: "no id",
			c:    Condition{Severity: SeverityError, Key: "release.resolve", Err: errors.New("timeout")},
			want: "[error] release.resolve: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.Error())
		})
	}
}

func TestUnrecoverableError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	conds := NewConditions(nil)
	conds.Add("instance.create", ResourceInstance, "a", fmt.Errorf("create: %w", sentinel))
	conds.Warn("volume.leaked", ResourceVolume, "v-1", "stuck")

	err := unrecoverable(nil, conds, "problem allocating instances")
	assert.Equal(t, "problem allocating instances (2 conditions)\n"+
		"  [error] instance.create instance a: create: sentinel\n"+
		"  [warning] volume.leaked volume v-1: stuck", err.Error())
	assert.ErrorIs(t, err, sentinel)

	wrapped := fmt.Errorf("allocate: %w", err)
	assert.True(t, IsUnrecoverable(wrapped))
	assert.False(t, IsUnrecoverable(sentinel))

	var ue *UnrecoverableError
	require.ErrorAs(t, wrapped, &ue)
	assert.Len(t, ue.Conditions, 2)
}

func TestUnrecoverableError_Cause(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such pool")
	err := unrecoverable(cause, nil, "precondition failed")
	assert.Equal(t, "precondition failed: no such pool", err.Error())
	assert.ErrorIs(t, err, cause)
}
