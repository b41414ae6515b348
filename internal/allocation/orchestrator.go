package allocation

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/juju/clock"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
	"github.com/imamik/fleetalloc/internal/util/retry"
)

// Orchestrator allocates, releases and looks up instances on one control plane.
// Calls are sequential and hold no state between them; logical identity is
// recovered from resource tags on every call.
type Orchestrator struct {
	cp       cloud.ControlPlane
	clock    clock.Clock
	timeouts *config.Timeouts
	log      logr.Logger
	metrics  *Metrics

	resolver *Resolver
	poller   *Poller
	releaser *Releaser
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithClock replaces the wall clock used for polling.
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

// WithTimeouts sets the wait bounds. Defaults come from LoadTimeouts.
func WithTimeouts(t *config.Timeouts) Option {
	return func(o *Orchestrator) {
		o.timeouts = t.Defaulted()
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an Orchestrator for cp.
func New(cp cloud.ControlPlane, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cp:    cp,
		clock: clock.WallClock,
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.timeouts == nil {
		o.timeouts = config.LoadTimeouts()
	}

	o.resolver = NewResolver(cp, o.log.WithName("resolver"))
	o.poller = NewPoller(cp, o.clock, o.timeouts.PollInterval, o.log.WithName("poller"), o.metrics)
	o.releaser = &Releaser{
		cp:       cp,
		resolver: o.resolver,
		poller:   o.poller,
		timeouts: o.timeouts,
		log:      o.log.WithName("release"),
		metrics:  o.metrics,

		withRetry: o.withRetry,
	}
	return o
}

// withRetry retries read-only control plane calls with exponential backoff.
func (o *Orchestrator) withRetry(ctx context.Context, op func() error) error {
	return retry.WithExponentialBackoff(ctx, op,
		retry.WithMaxRetries(o.timeouts.RetryMaxAttempts-1),
		retry.WithInitialDelay(o.timeouts.RetryInitialDelay),
		retry.WithClock(o.clock),
	)
}

// Resolver returns the orchestrator's identity resolver.
func (o *Orchestrator) Resolver() *Resolver {
	return o.resolver
}

// Delete releases every resource tied to logicalIDs. Deleting IDs that were
// never allocated, or are already gone, is a no-op.
func (o *Orchestrator) Delete(ctx context.Context, tmpl config.Template, logicalIDs []string) error {
	conds := NewConditions(o.metrics)
	o.releaser.Release(ctx, releaseRequestFor(tmpl, logicalIDs, nil), conds)
	if conds.Len() > 0 {
		return unrecoverable(nil, conds, "problem deleting instances")
	}
	return nil
}
