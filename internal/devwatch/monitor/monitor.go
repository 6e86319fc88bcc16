// Package monitor runs the continuous monitoring session: one log watcher
// per configured log plus a periodic snapshot-and-diff loop
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/diff"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/logwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultInterval is the tick period when none is configured
const DefaultInterval = 5 * time.Second

// watcherRestartDelay spaces out re-launch attempts of a closed watcher
const watcherRestartDelay = time.Second

// State of a Monitor
type State int

// Monitor states
const (
	Idle State = iota
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshotter takes fresh snapshots for each tick
type Snapshotter interface {
	Refresh(ctx context.Context) (types.Snapshot, error)
}

// Publisher receives every event the monitor produces
type Publisher interface {
	Publish(events.Event)
}

// Options configures a Monitor
type Options struct {
	Interval        time.Duration
	Logs            []string
	Watch           logwatch.Config
	Diff            diff.Options
	RestartWatchers bool
}

// Info describes the current session
type Info struct {
	State     string    `json:"state"`
	Interval  string    `json:"interval"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastTick  time.Time `json:"last_tick,omitempty"`
	Ticks     int       `json:"ticks"`
	Watchers  []string  `json:"watchers"`
}

// Monitor owns the monitoring session. All methods are safe for concurrent
// use, and Stop may be called from inside an event handler.
type Monitor struct {
	snap Snapshotter
	pub  Publisher
	opts Options

	mu        sync.Mutex
	state     State
	session   uint64
	cancel    context.CancelFunc
	watchers  map[string]*logwatch.Handle
	loopDone  chan struct{}
	reaped    chan struct{}
	startedAt time.Time
	lastTick  time.Time
	ticks     int

	// outbox holds events in publication order; emitMu is held by whichever
	// goroutine is draining it
	outbox []events.Event
	emitMu sync.Mutex
}

// New creates an idle monitor
func New(snap Snapshotter, pub Publisher, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Monitor{snap: snap, pub: pub, opts: opts}
}

// State returns the current state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start launches the log watchers and the tick loop. If any watcher fails
// to start, the ones already running are stopped and the monitor stays idle.
// The loop ends when Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != Idle {
		m.mu.Unlock()
		return dwerrors.ErrAlreadyMonitoring
	}

	m.session++
	session := m.session
	watchers := make(map[string]*logwatch.Handle, len(m.opts.Logs))
	for _, name := range m.opts.Logs {
		if _, dup := watchers[name]; dup {
			continue
		}
		h, err := logwatch.Watch(m.opts.Watch, name, watcherSink{m: m, session: session, name: name})
		if err != nil {
			for _, started := range watchers {
				started.Close()
			}
			m.mu.Unlock()
			for _, started := range watchers {
				_ = started.Wait(0)
			}
			return dwerrors.Wrapf(err, "start watcher %q", name)
		}
		watchers[name] = h
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	m.state = Active
	m.cancel = cancel
	m.watchers = watchers
	m.loopDone = make(chan struct{})
	m.reaped = nil
	m.startedAt = time.Now()
	m.lastTick = time.Time{}
	m.ticks = 0
	loopDone := m.loopDone
	m.mu.Unlock()

	log.InfoH2("monitoring %d log(s) every %v", len(watchers), m.opts.Interval)
	m.emit(events.Lifecycle(events.KindMonitorStarted, "", fmt.Sprintf("watching %s", joinNames(watchers)), nil))

	go m.loop(sessionCtx, session, loopDone)
	return nil
}

// Stop ends the session: the ticker is cancelled, every watcher is told to
// terminate and monitor.stopped is published after any transition already
// queued. No transition of the session follows it. Stop does not wait for
// the loop goroutine or the watchers; use Wait for that. Stop while idle is
// a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != Active {
		m.mu.Unlock()
		return
	}
	m.state = Stopping
	cancel := m.cancel
	handles := m.watchers
	m.watchers = nil
	m.cancel = nil
	grace := m.opts.Watch.StopGrace
	reaped := make(chan struct{})
	m.reaped = reaped
	m.mu.Unlock()

	cancel()
	for _, h := range handles {
		h.Close()
	}
	go func() {
		defer close(reaped)
		for name, h := range handles {
			if err := h.Wait(grace); err != nil {
				log.Warn("watcher %s abandoned: %v", name, err)
			}
		}
	}()

	m.mu.Lock()
	m.state = Idle
	m.outbox = append(m.outbox, events.Lifecycle(events.KindMonitorStopped, "", "monitoring stopped", nil))
	m.mu.Unlock()

	log.InfoH2("monitoring stopped")
	m.flush()
}

// Wait blocks until the last session's loop and watchers have finished or
// ctx is done
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	loopDone, reaped := m.loopDone, m.reaped
	m.mu.Unlock()

	for _, ch := range []chan struct{}{loopDone, reaped} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Info reports the session state
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.watchers))
	for name := range m.watchers {
		names = append(names, name)
	}
	sort.Strings(names)

	info := Info{
		State:    m.state.String(),
		Interval: m.opts.Interval.String(),
		Ticks:    m.ticks,
		Watchers: names,
	}
	if m.state == Active {
		info.StartedAt = m.startedAt
		info.LastTick = m.lastTick
	}
	return info
}

func (m *Monitor) loop(ctx context.Context, session uint64, done chan struct{}) {
	defer close(done)
	// A cancelled parent context ends the session like Stop does
	defer m.stopSession(session)

	var baseline *types.Snapshot
	if snap, ok := m.tick(ctx, session, nil); ok {
		baseline = &snap
	}

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if snap, ok := m.tick(ctx, session, baseline); ok {
				baseline = &snap
			}
		}
	}
}

// tick takes a snapshot and publishes its transitions against baseline.
// Errors and panics become monitor.error events; ok is false when the
// snapshot could not be taken or the session ended meanwhile.
func (m *Monitor) tick(ctx context.Context, session uint64, baseline *types.Snapshot) (snap types.Snapshot, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.DebugH2("tick panic: %v\n%s", r, debug.Stack())
			ok = false
			if ctx.Err() == nil {
				err := dwerrors.Wrapf(dwerrors.ErrTick, "panic: %v", r)
				m.emitFor(session, events.Lifecycle(events.KindMonitorError, "", "tick failed", err))
			}
		}
	}()

	snap, err := m.snap.Refresh(ctx)
	if ctx.Err() != nil {
		return types.Snapshot{}, false
	}
	if err != nil {
		log.Warn("tick failed: %v", err)
		m.emitFor(session, events.Lifecycle(events.KindMonitorError, "", "tick failed", fmt.Errorf("%w: %w", dwerrors.ErrTick, err)))
		return types.Snapshot{}, false
	}

	for _, ev := range m.opts.Diff.Diff(baseline, snap) {
		// a Stop between two transitions drops the rest of the tick
		if ctx.Err() != nil || !m.emitFor(session, events.FromTransition(ev, snap.Timestamp)) {
			return types.Snapshot{}, false
		}
		log.DebugH2("transition: %s", ev)
	}

	m.mu.Lock()
	if m.session == session {
		m.ticks++
		m.lastTick = snap.Timestamp
	}
	m.mu.Unlock()
	return snap, true
}

// emit queues e behind every event already waiting and publishes the queue
func (m *Monitor) emit(e events.Event) {
	m.mu.Lock()
	m.outbox = append(m.outbox, e)
	m.mu.Unlock()
	m.flush()
}

// emitFor queues e only while session is the active one. Checking the
// session under m.mu orders e before the monitor.stopped that Stop queues.
func (m *Monitor) emitFor(session uint64, e events.Event) bool {
	m.mu.Lock()
	if m.session != session || m.state != Active {
		m.mu.Unlock()
		return false
	}
	m.outbox = append(m.outbox, e)
	m.mu.Unlock()
	m.flush()
	return true
}

// flush publishes queued events in order. A caller that finds another
// flush in progress returns at once: that flush, possibly an outer frame of
// the same goroutine running a handler, delivers the event.
func (m *Monitor) flush() {
	for m.emitMu.TryLock() {
		for {
			m.mu.Lock()
			if len(m.outbox) == 0 {
				m.mu.Unlock()
				break
			}
			e := m.outbox[0]
			m.outbox = m.outbox[1:]
			m.mu.Unlock()
			m.pub.Publish(e)
		}
		m.emitMu.Unlock()

		m.mu.Lock()
		pending := len(m.outbox) > 0
		m.mu.Unlock()
		if !pending {
			return
		}
	}
}

func (m *Monitor) stopSession(session uint64) {
	m.mu.Lock()
	current := m.session == session && m.state == Active
	m.mu.Unlock()
	if current {
		m.Stop()
	}
}

// watcherClosed drops a dead watcher from the active set and optionally
// relaunches it
func (m *Monitor) watcherClosed(session uint64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != session || m.state != Active {
		return
	}
	delete(m.watchers, name)
	if m.opts.RestartWatchers {
		go m.restartWatcher(session, name)
	}
}

func (m *Monitor) restartWatcher(session uint64, name string) {
	time.Sleep(watcherRestartDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != session || m.state != Active {
		return
	}
	if _, running := m.watchers[name]; running {
		return
	}
	h, err := logwatch.Watch(m.opts.Watch, name, watcherSink{m: m, session: session, name: name})
	if err != nil {
		log.Warn("restart watcher %s: %v", name, err)
		return
	}
	m.watchers[name] = h
	log.InfoH3("watcher %s restarted", name)
}

// watcherSink forwards watcher events and tracks watcher closure
type watcherSink struct {
	m       *Monitor
	session uint64
	name    string
}

func (s watcherSink) Publish(e events.Event) {
	s.m.pub.Publish(e)
	if e.Kind == events.KindWatcherClosed {
		s.m.watcherClosed(s.session, s.name)
	}
}

func joinNames(watchers map[string]*logwatch.Handle) string {
	names := make([]string, 0, len(watchers))
	for name := range watchers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "no logs"
	}
	return fmt.Sprint(names)
}
