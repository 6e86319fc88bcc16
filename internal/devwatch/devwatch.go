// Package devwatch is the engine facade: it owns the cache, probe set,
// snapshotter, event bus and monitor of one project and answers queries
// independently of whether monitoring is active.
package devwatch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/diff"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
	"github.com/dimasma0305/devwatch/internal/devwatch/logwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/monitor"
	"github.com/dimasma0305/devwatch/internal/devwatch/probe"
	"github.com/dimasma0305/devwatch/internal/devwatch/snapshot"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// Engine is the state of one observed project
type Engine struct {
	cfg    *config.Config
	cache  *cache.Cache
	probes probe.Set
	snap   *snapshot.Snapshotter
	bus    *events.Bus
	mon    *monitor.Monitor
	now    func() time.Time

	mu      sync.Mutex
	journal *journal.DB
	stopRun context.CancelFunc
}

type options struct {
	runner probe.Runner
	probes *probe.Set
	now    func() time.Time
}

// Option customizes New
type Option func(*options)

// WithRunner runs external tools through r
func WithRunner(r probe.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithProbes replaces the whole probe set
func WithProbes(s probe.Set) Option {
	return func(o *options) { o.probes = &s }
}

// WithClock sets the clock used for relative times in Status
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds an engine from a validated configuration
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.TTL,
	})

	var probes probe.Set
	if o.probes != nil {
		probes = *o.probes
	} else {
		probes = probe.NewSet(probe.Options{
			Root:            cfg.Root,
			Runner:          o.runner,
			Cache:           c,
			Host:            cfg.Network.Host,
			Endpoints:       cfg.Network.Endpoints,
			EndpointTimeout: cfg.Network.Timeout,
			Timeouts:        cfg.Quality,
		})
	}

	bus := events.NewBus(cfg.HistorySize)
	snap := snapshot.New(probes, c, cfg.Cache.TTL)
	mon := monitor.New(snap, bus, monitor.Options{
		Interval: cfg.Interval,
		Logs:     cfg.Logs,
		Watch: logwatch.Config{
			LogsDir:     cfg.Resolve(cfg.LogsDir),
			IncludeInfo: cfg.IncludeInfo,
			StopGrace:   cfg.WatcherGrace,
			Poll:        cfg.PollLogs,
		},
		Diff:            diff.Options{DetectRestarts: cfg.DetectRestarts},
		RestartWatchers: cfg.RestartWatchers,
	})

	return &Engine{
		cfg:    cfg,
		cache:  c,
		probes: probes,
		snap:   snap,
		bus:    bus,
		mon:    mon,
		now:    o.now,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() *config.Config { return e.cfg }

// Project is the project directory name
func (e *Engine) Project() string { return filepath.Base(e.cfg.Root) }

// Bus returns the event bus
func (e *Engine) Bus() *events.Bus { return e.bus }

// Subscribe registers h for every published event
func (e *Engine) Subscribe(h events.Handler) (unsubscribe func()) {
	return e.bus.Subscribe(h)
}

// Scan takes a fresh snapshot, bypassing and then refilling the cache
func (e *Engine) Scan(ctx context.Context) (types.Snapshot, error) {
	return e.snap.Refresh(ctx)
}

// Snapshot returns the cached snapshot, taking one on a miss
func (e *Engine) Snapshot(ctx context.Context) (types.Snapshot, error) {
	return e.snap.Snapshot(ctx)
}

// CanStart reports whether the environment has no critical issues
func (e *Engine) CanStart(ctx context.Context) (bool, error) {
	snap, err := e.snap.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return len(snap.Readiness.CriticalIssues) == 0, nil
}

// Status derives the summary of the cached snapshot
func (e *Engine) Status(ctx context.Context) (Status, error) {
	snap, err := e.snap.Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	return Summarize(e.Project(), snap, e.mon.Info(), e.now()), nil
}

// StartMonitor begins monitoring; the session ends on StopMonitor or when
// ctx is cancelled
func (e *Engine) StartMonitor(ctx context.Context) error {
	return e.mon.Start(ctx)
}

// StopMonitor ends the monitoring session. It is a no-op when idle.
func (e *Engine) StopMonitor() {
	e.mon.Stop()
}

// WaitMonitor blocks until the stopped session has fully wound down
func (e *Engine) WaitMonitor(ctx context.Context) error {
	return e.mon.Wait(ctx)
}

// MonitorInfo reports the monitor session
func (e *Engine) MonitorInfo() monitor.Info {
	return e.mon.Info()
}

// InvalidateStructure drops the cached structure and snapshot so the next
// query re-detects the workspace layout
func (e *Engine) InvalidateStructure() {
	e.cache.Delete(cache.KeyStructure, cache.KeyEnvScan)
}

// manifests lists the files whose change invalidates the structure
func (e *Engine) manifests() []string {
	st := e.probes.Structure.Probe(context.Background())
	return probe.ManifestFiles(e.cfg.Root, st)
}

func (e *Engine) manifestsChanged(paths []string) {
	log.InfoH3("manifest changed: %v", relPaths(e.cfg.Root, paths))
	e.InvalidateStructure()
}

func relPaths(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
		out = append(out, p)
	}
	return out
}
