package handlers

import (
	"errors"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/fleetalloc/internal/allocation"
	"github.com/imamik/fleetalloc/internal/config"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath  string
	Verbosity   int
	LogFormat   string
	MetricsFile string
	Output      string
}

// Output streams and the polling clock, replaced in tests.
var (
	stdout io.Writer   = os.Stdout
	stderr io.Writer   = os.Stderr
	clk    clock.Clock = clock.WallClock
)

// env is everything one command needs.
type env struct {
	cfg      *config.Config
	cp       ControlPlane
	orch     *allocation.Orchestrator
	log      logr.Logger
	registry *prometheus.Registry
	opts     Options
}

func newEnv(opts Options) (*env, error) {
	log, err := NewLogger(stderr, LogFormat(opts.LogFormat), opts.Verbosity)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	timeouts := config.LoadTimeouts()
	cp, err := newControlPlane(cfg, timeouts, log.WithName(cfg.Provider))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	orch := allocation.New(cp,
		allocation.WithLogger(log),
		allocation.WithClock(clk),
		allocation.WithTimeouts(timeouts),
		allocation.WithMetrics(allocation.NewMetrics(registry)),
	)

	return &env{cfg: cfg, cp: cp, orch: orch, log: log, registry: registry, opts: opts}, nil
}

// finish writes the metrics file and joins its error with the command's.
func (e *env) finish(err error) error {
	return errors.Join(err, writeMetrics(e.opts.MetricsFile, e.registry))
}
