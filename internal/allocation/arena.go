package allocation

import "github.com/imamik/fleetalloc/internal/cloud"

// instanceState is the per-instance position in an allocation.
type instanceState int

const (
	// stateNotReady covers requested, creating and awaiting-network instances,
	// as well as instances demoted by a failed floating IP or volume step.
	stateNotReady instanceState = iota
	stateReady
	stateAttached
	// stateFailed instances are scheduled for rollback.
	stateFailed
	stateRolledBack
)

func (s instanceState) String() string {
	switch s {
	case stateNotReady:
		return "NotReady"
	case stateReady:
		return "Ready"
	case stateAttached:
		return "Attached"
	case stateFailed:
		return "Failed"
	case stateRolledBack:
		return "RolledBack"
	default:
		return "Unknown"
	}
}

// Rollback reasons, used as the metrics "reason" label.
const (
	reasonCreate     = "create"
	reasonNetwork    = "network"
	reasonFloatingIP = "floating_ip"
	reasonActive     = "active"
	reasonVolume     = "volume"
	reasonThreshold  = "threshold"
)

type record struct {
	logicalID  string
	instanceID string
	name       string
	state      instanceState
	reason     string
	floatingIP *cloud.FloatingIP
	volumeIDs  []string
}

// demote sends a ready instance back to not-ready with a rollback reason.
func (r *record) demote(reason string) {
	r.state = stateNotReady
	r.reason = reason
}

// fail marks an instance for rollback, keeping the first reason recorded.
func (r *record) fail(reason string) {
	r.state = stateFailed
	if r.reason == "" {
		r.reason = reason
	}
}

// arena holds one record per logical ID in request order.
type arena struct {
	records []*record
}

func newArena(logicalIDs []string) *arena {
	a := &arena{records: make([]*record, 0, len(logicalIDs))}
	for _, id := range logicalIDs {
		a.records = append(a.records, &record{logicalID: id})
	}
	return a
}

func (a *arena) in(states ...instanceState) []*record {
	var out []*record
	for _, r := range a.records {
		for _, s := range states {
			if r.state == s {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func (a *arena) count(states ...instanceState) int {
	return len(a.in(states...))
}

// failNotReady moves every not-ready instance to failed and returns them.
func (a *arena) failNotReady(reason string) []*record {
	recs := a.in(stateNotReady)
	for _, r := range recs {
		r.fail(reason)
	}
	return recs
}

func logicalIDs(recs []*record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.logicalID)
	}
	return out
}
