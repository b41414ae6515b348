package allocation

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/juju/clock"
	jujuretry "github.com/juju/retry"

	"github.com/imamik/fleetalloc/internal/cloud"
)

// Poll kinds, used as the metrics "kind" label.
const (
	PollNetwork        = "network"
	PollInstanceStatus = "instance_status"
	PollInstanceDelete = "instance_delete"
	PollVolumeStatus   = "volume_status"
	PollVolumeDelete   = "volume_delete"
	PollFloatingIP     = "floating_ip"
)

var errNotYet = errors.New("condition not met yet")

// Poller repeatedly checks a condition at a fixed interval until it holds or
// a deadline passes. It never returns an error: fetch failures go to the
// caller's Conditions and count as a non-match.
type Poller struct {
	cp       cloud.ControlPlane
	clock    clock.Clock
	interval time.Duration
	log      logr.Logger
	metrics  *Metrics
}

// NewPoller creates a poller that fetches state from cp.
func NewPoller(cp cloud.ControlPlane, clk clock.Clock, interval time.Duration, log logr.Logger, m *Metrics) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{cp: cp, clock: clk, interval: interval, log: log, metrics: m}
}

// Until evaluates check immediately and then every interval until it
// returns true, maxWait elapses or ctx is done. It reports whether the
// condition was met.
func (p *Poller) Until(ctx context.Context, kind, id string, maxWait time.Duration, conds *Conditions,
	check func(context.Context) (bool, error)) bool {
	start := p.clock.Now()
	attempt := 0
	attempts := -1
	if maxWait <= 0 {
		attempts = 1
	}

	err := jujuretry.Call(jujuretry.CallArgs{
		Func: func() error {
			attempt++
			ok, err := check(ctx)
			if err != nil {
				p.log.V(1).Info("poll check failed", "kind", kind, "id", id, "attempt", attempt, "error", err.Error())
				conds.Add("poll."+kind, resourceForPoll(kind), id, err)
				return err
			}
			if !ok {
				return errNotYet
			}
			return nil
		},
		Attempts:    attempts,
		Delay:       p.interval,
		MaxDuration: maxWait,
		Clock:       p.clock,
		Stop:        ctx.Done(),
	})

	result := "matched"
	switch {
	case err == nil:
	case jujuretry.IsRetryStopped(err):
		result = "cancelled"
	default:
		result = "timeout"
	}
	elapsed := p.clock.Now().Sub(start)
	p.metrics.recordPoll(kind, result, elapsed)

	if err != nil {
		p.log.V(1).Info("poll ended without match", "kind", kind, "id", id, "result", result,
			"attempts", attempt, "elapsed", elapsed.String())
		return false
	}
	return true
}

// WaitForInstanceStatus waits until the instance reports want.
// A missing instance never matches.
func (p *Poller) WaitForInstanceStatus(ctx context.Context, id string, want cloud.Status, maxWait time.Duration, conds *Conditions) bool {
	return p.Until(ctx, PollInstanceStatus, id, maxWait, conds, func(ctx context.Context) (bool, error) {
		inst, err := p.cp.GetInstance(ctx, id)
		if cloud.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return inst.Status == want, nil
	})
}

// WaitForInstanceDeleted waits until the instance is gone or reports DELETED.
func (p *Poller) WaitForInstanceDeleted(ctx context.Context, id string, maxWait time.Duration, conds *Conditions) bool {
	return p.Until(ctx, PollInstanceDelete, id, maxWait, conds, func(ctx context.Context) (bool, error) {
		inst, err := p.cp.GetInstance(ctx, id)
		if cloud.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return inst.Status == cloud.StatusDeleted, nil
	})
}

// WaitForVolumeStatus waits until the volume reports one of want and
// returns the last observed volume. A missing volume never matches.
func (p *Poller) WaitForVolumeStatus(ctx context.Context, id string, maxWait time.Duration, conds *Conditions,
	want ...cloud.VolumeStatus) (*cloud.Volume, bool) {
	var last *cloud.Volume
	ok := p.Until(ctx, PollVolumeStatus, id, maxWait, conds, func(ctx context.Context) (bool, error) {
		vol, err := p.cp.GetVolume(ctx, id)
		if cloud.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		last = vol
		return slices.Contains(want, vol.Status), nil
	})
	return last, ok
}

// WaitForVolumeDeleted waits until the volume no longer exists.
func (p *Poller) WaitForVolumeDeleted(ctx context.Context, id string, maxWait time.Duration, conds *Conditions) bool {
	return p.Until(ctx, PollVolumeDelete, id, maxWait, conds, func(ctx context.Context) (bool, error) {
		_, err := p.cp.GetVolume(ctx, id)
		if cloud.IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
}

func resourceForPoll(kind string) string {
	switch kind {
	case PollVolumeStatus, PollVolumeDelete:
		return ResourceVolume
	case PollFloatingIP:
		return ResourceFloatingIP
	default:
		return ResourceInstance
	}
}
