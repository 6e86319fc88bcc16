// Package snapshot assembles point-in-time snapshots from the probe set and
// scores their readiness
package snapshot

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dimasma0305/devwatch/internal/devwatch/cache"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/probe"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// Snapshotter produces snapshots, serving repeated requests from the cache
type Snapshotter struct {
	probes probe.Set
	cache  *cache.Cache
	ttl    time.Duration
	now    func() time.Time

	// concurrent callers share one probe run per key
	group singleflight.Group
}

const refreshKey = "refresh"

// New creates a snapshotter. A nil cache disables caching; ttl <= 0 uses
// the cache default.
func New(probes probe.Set, c *cache.Cache, ttl time.Duration) *Snapshotter {
	return &Snapshotter{
		probes: probes,
		cache:  c,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Snapshot returns the cached env_scan snapshot or takes a new one. The
// error is non-nil only when a probe panicked; ordinary probe failures are
// reported inside the snapshot.
func (s *Snapshotter) Snapshot(ctx context.Context) (types.Snapshot, error) {
	if snap, ok := s.cached(); ok {
		log.DebugH3("snapshot served from cache")
		return snap, nil
	}

	return s.shared(cache.KeyEnvScan, func() (types.Snapshot, error) {
		// Another caller may have refreshed while this one waited
		if snap, ok := s.cached(); ok {
			return snap, nil
		}
		return s.refresh(ctx)
	})
}

// Refresh takes a new snapshot without reading the cache and stores it.
// Callers that arrive while a refresh is running receive its result.
func (s *Snapshotter) Refresh(ctx context.Context) (types.Snapshot, error) {
	return s.shared(refreshKey, func() (types.Snapshot, error) {
		return s.refresh(ctx)
	})
}

func (s *Snapshotter) shared(key string, fn func() (types.Snapshot, error)) (types.Snapshot, error) {
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return types.Snapshot{}, err
	}
	// singleflight hands the same value to every waiter
	return v.(types.Snapshot).Clone(), nil
}

func (s *Snapshotter) cached() (types.Snapshot, bool) {
	if s.cache == nil {
		return types.Snapshot{}, false
	}
	snap, ok := cache.GetAs[types.Snapshot](s.cache, cache.KeyEnvScan)
	if !ok {
		return types.Snapshot{}, false
	}
	return snap.Clone(), true
}

func (s *Snapshotter) refresh(ctx context.Context) (types.Snapshot, error) {
	start := time.Now()
	snap, err := s.collect(ctx)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap.Readiness = Score(snap)

	if s.cache != nil {
		s.cache.SetWithTTL(cache.KeyEnvScan, snap, s.ttl)
	}
	log.DebugH2("snapshot taken in %v: score %d (%s)", time.Since(start).Round(time.Millisecond), snap.Readiness.Score, snap.Readiness.Level)
	return snap, nil
}

// collect runs every probe concurrently and waits for all of them
func (s *Snapshotter) collect(ctx context.Context) (types.Snapshot, error) {
	snap := types.Snapshot{Timestamp: s.now()}

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		errs   []error
		launch = func(name string, fn func()) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.DebugH2("%s probe panic: %v\n%s", name, r, debug.Stack())
						errMu.Lock()
						errs = append(errs, fmt.Errorf("%s probe panicked: %v", name, r))
						errMu.Unlock()
					}
				}()
				fn()
			}()
		}
	)

	launch("process", func() { snap.Processes = s.probes.Processes.Probe(ctx) })
	launch("network", func() { snap.Network = s.probes.Network.Probe(ctx) })
	launch("quality", func() { snap.Quality = s.probes.Quality.Probe(ctx) })
	launch("vcs", func() { snap.VersionControl = s.probes.VCS.Probe(ctx) })
	launch("structure", func() { snap.Structure = s.probes.Structure.Probe(ctx) })
	wg.Wait()

	if len(errs) > 0 {
		return types.Snapshot{}, dwerrors.Wrap(dwerrors.Join(errs...), "snapshot")
	}
	if snap.Processes == nil {
		snap.Processes = map[string]types.Process{}
	}
	return snap, nil
}
