package devwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
	"github.com/dimasma0305/devwatch/internal/devwatch/monitor"
	"github.com/dimasma0305/devwatch/internal/devwatch/socket"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Interval = 30 * time.Millisecond
	cfg.Logs = nil
	cfg.PollLogs = true
	cfg.Journal.Enabled = false
	cfg.Daemon.SocketEnabled = false
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, opts ...Option) (*Engine, *testutil.Sources) {
	t.Helper()
	src := testutil.NewSources()
	e, err := New(cfg, append([]Option{WithProbes(src.Set())}, opts...)...)
	testutil.AssertNoError(t, err, "New()")
	t.Cleanup(func() {
		e.StopMonitor()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.WaitMonitor(ctx)
	})
	return e, src
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Interval = 0

	_, err := New(cfg)
	if !errors.Is(err, dwerrors.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestScanAndSnapshotCaching(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	ctx := context.Background()

	first, err := e.Snapshot(ctx)
	testutil.AssertNoError(t, err, "Snapshot()")
	second, err := e.Snapshot(ctx)
	testutil.AssertNoError(t, err, "Snapshot()")
	if src.ProcessCalls() != 1 {
		t.Fatalf("process probe ran %d times for two cached snapshots", src.ProcessCalls())
	}
	if !first.Timestamp.Equal(second.Timestamp) {
		t.Error("cached snapshot differs from the first one")
	}

	fresh, err := e.Scan(ctx)
	testutil.AssertNoError(t, err, "Scan()")
	if src.ProcessCalls() != 2 {
		t.Errorf("Scan() did not re-probe, calls = %d", src.ProcessCalls())
	}

	after, err := e.Snapshot(ctx)
	testutil.AssertNoError(t, err, "Snapshot() after Scan()")
	if !after.Timestamp.Equal(fresh.Timestamp) || src.ProcessCalls() != 2 {
		t.Error("Scan() did not refill the cache")
	}
}

func TestInvalidateStructure(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	ctx := context.Background()

	_, _ = e.Snapshot(ctx)
	e.InvalidateStructure()
	_, _ = e.Snapshot(ctx)
	if src.ProcessCalls() != 2 {
		t.Errorf("process calls = %d, want a re-probe after invalidation", src.ProcessCalls())
	}
}

func TestCanStart(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	ctx := context.Background()

	ok, err := e.CanStart(ctx)
	testutil.AssertNoError(t, err, "CanStart()")
	if !ok {
		t.Error("CanStart() = false for a clean project")
	}

	src.SetQuality(types.Quality{
		TypeScript: types.TypeCheckResult{Available: true, ErrorCount: 4},
		Lint:       types.LintResult{Available: true},
		Build:      types.BuildResult{Available: true, Success: true},
	})
	_, err = e.Scan(ctx)
	testutil.AssertNoError(t, err, "Scan()")

	ok, err = e.CanStart(ctx)
	testutil.AssertNoError(t, err, "CanStart()")
	if ok {
		t.Error("CanStart() = true with TypeScript errors")
	}

	// Unavailable facets are not critical
	src.SetQuality(types.Quality{})
	_, _ = e.Scan(ctx)
	if ok, _ := e.CanStart(ctx); !ok {
		t.Error("CanStart() = false when tools are merely unavailable")
	}
}

func TestCanStartPropagatesProbePanic(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	src.SetPanic("ps exploded")

	_, err := e.CanStart(context.Background())
	testutil.AssertError(t, err, "CanStart() with panicking probe")
}

func TestStatus(t *testing.T) {
	cfg := testConfig(t)
	e, src := newEngine(t, cfg, WithClock(func() time.Time { return time.Now().Add(3 * time.Minute) }))
	src.SetProcesses(map[string]types.Process{
		"vite": {PID: 10, Port: 5173, Kind: "vite"},
		"api":  {PID: 11, Kind: "node"},
	})
	src.SetNetwork([]types.Endpoint{
		{Name: "vite", Port: 5173, StatusCode: 200, Healthy: true},
		{Name: "next", Port: 3000, Offline: true},
	})

	st, err := e.Status(context.Background())
	testutil.AssertNoError(t, err, "Status()")

	want := Status{
		Project:        filepath.Base(cfg.Root),
		Age:            "3 minutes ago",
		Level:          types.LevelReady,
		Score:          100,
		CanStart:       true,
		Issues:         []string{},
		CriticalIssues: []string{},
		Roles:          []string{"api", "vite"},
		Running:        2,
		Healthy:        1,
		Endpoints:      2,
		Branch:         "main",
		Clean:          true,
		Monitor:        monitor.Info{State: "idle", Interval: "30ms", Watchers: []string{}},
	}
	if diff := cmp.Diff(want, st, cmpopts.IgnoreFields(Status{}, "Timestamp")); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeLastTick(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := types.Snapshot{
		Timestamp: now.Add(-time.Hour),
		Readiness: types.Readiness{Level: types.LevelNotReady, CriticalIssues: []string{"Build failing"}},
	}
	info := monitor.Info{State: "active", LastTick: now.Add(-10 * time.Second)}

	st := Summarize("shop", snap, info, now)
	if st.Age != "1 hour ago" || st.LastTick != "10 seconds ago" {
		t.Errorf("relative times = %q / %q", st.Age, st.LastTick)
	}
	if st.CanStart {
		t.Error("CanStart = true with a critical issue")
	}
	if st.Branch != "" {
		t.Errorf("Branch = %q from an unavailable VCS facet", st.Branch)
	}
}

func TestMonitorControl(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	ctx := context.Background()

	rec := make(chan events.Event, 64)
	unsubscribe := e.Subscribe(func(ev events.Event) {
		select {
		case rec <- ev:
		default:
		}
	})
	defer unsubscribe()

	testutil.AssertNoError(t, e.StartMonitor(ctx), "StartMonitor()")
	if err := e.StartMonitor(ctx); !errors.Is(err, dwerrors.ErrAlreadyMonitoring) {
		t.Errorf("second StartMonitor() = %v, want ErrAlreadyMonitoring", err)
	}

	st, err := e.Status(ctx)
	testutil.AssertNoError(t, err, "Status() while monitoring")
	if st.Monitor.State != "active" {
		t.Errorf("monitor state = %q, want active", st.Monitor.State)
	}

	testutil.WaitWithTimeout(t, 2*time.Second, func() bool {
		return e.MonitorInfo().Ticks > 0
	}, "baseline tick")

	src.SetProcesses(map[string]types.Process{"vite": {PID: 42, Kind: "vite"}})
	var started *types.TransitionEvent
	deadline := time.After(3 * time.Second)
	for started == nil {
		select {
		case ev := <-rec:
			if ev.Kind == events.KindTransition && ev.Transition.Kind == types.ProcessStarted {
				started = ev.Transition
			}
		case <-deadline:
			t.Fatal("no process_started transition")
		}
	}
	if started.Role != "vite" || started.PID != 42 {
		t.Errorf("transition = %+v", started)
	}

	e.StopMonitor()
	e.StopMonitor()
	if e.MonitorInfo().State != "idle" {
		t.Errorf("state after stop = %q", e.MonitorInfo().State)
	}
}

func TestEventsFromHistory(t *testing.T) {
	e, _ := newEngine(t, testConfig(t))
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	e.Bus().Publish(events.FromTransition(types.NewProcessStarted("vite", 1), at))
	e.Bus().Publish(events.FromLog(types.ClassifiedEvent{Source: "dev", RawLine: "Error: boom", Category: types.CategoryError, Severity: types.SeverityError, Timestamp: at.Add(time.Second)}))
	e.Bus().Publish(events.FromTransition(types.NewProcessCrashed("vite", 1), at.Add(2*time.Second)))

	all, err := e.Events(journal.Query{})
	testutil.AssertNoError(t, err, "Events()")
	got := make([]string, 0, len(all))
	for _, entry := range all {
		got = append(got, entry.Message)
	}
	want := []string{"vite stopped (last pid 1)", "Error: boom", "vite started (pid 1)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Events() mismatch (-want +got):\n%s", diff)
	}

	transitions, err := e.Events(journal.Query{Kind: string(events.KindTransition), Limit: 1})
	testutil.AssertNoError(t, err, "Events(kind)")
	if len(transitions) != 1 || transitions[0].Category != string(types.ProcessCrashed) {
		t.Errorf("filtered events = %+v", transitions)
	}

	fromDev, _ := e.Events(journal.Query{Source: "dev"})
	if len(fromDev) != 1 || fromDev[0].Severity != "error" {
		t.Errorf("source filter = %+v", fromDev)
	}
}

func TestRouter(t *testing.T) {
	e, src := newEngine(t, testConfig(t))
	r := e.Router()
	ctx := context.Background()

	var st Status
	resp := r.HandleCommand(ctx, socket.Command{Action: socket.ActionStatus})
	testutil.AssertNoError(t, resp.Decode(&st), "decode status")
	if st.Level != types.LevelReady {
		t.Errorf("status level = %q", st.Level)
	}

	var snap types.Snapshot
	resp = r.HandleCommand(ctx, socket.Command{Action: socket.ActionScan, Data: map[string]interface{}{"fresh": true}})
	testutil.AssertNoError(t, resp.Decode(&snap), "decode scan")
	if src.ProcessCalls() != 2 {
		t.Errorf("fresh scan process calls = %d, want 2", src.ProcessCalls())
	}
	resp = r.HandleCommand(ctx, socket.Command{Action: socket.ActionScan})
	if !resp.Success || src.ProcessCalls() != 2 {
		t.Errorf("cached scan re-probed, calls = %d", src.ProcessCalls())
	}

	var stopping map[string]bool
	resp = r.HandleCommand(ctx, socket.Command{Action: socket.ActionStop})
	testutil.AssertNoError(t, resp.Decode(&stopping), "decode stop")
	if stopping["stopping"] {
		t.Error("stop reported a running process outside Run")
	}
}

// shortDir keeps socket paths under the sun_path limit
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dwe")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestRunServesSocketUntilStopped(t *testing.T) {
	cfg := testConfig(t)
	cfg.Daemon.SocketEnabled = true
	cfg.Daemon.SocketPath = filepath.Join(shortDir(t), "dw.sock")
	cfg.Journal.Enabled = true
	e, _ := newEngine(t, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background()) }()

	client := socket.NewClient(cfg.Daemon.SocketPath)
	client.SetTimeout(2 * time.Second)
	testutil.AssertNoError(t, client.WaitForMonitor(5*time.Second), "WaitForMonitor()")

	var st Status
	testutil.AssertNoError(t, client.Status(&st), "Status()")
	if st.Monitor.State != "active" {
		t.Errorf("monitor state over socket = %q", st.Monitor.State)
	}
	if err := e.Run(context.Background()); err == nil {
		t.Error("second Run() should fail while the first is running")
	}

	e.Bus().Publish(events.FromTransition(types.NewNetworkDown("api", 8080), time.Now()))
	testutil.WaitWithTimeout(t, 5*time.Second, func() bool {
		var entries []journal.Entry
		if err := client.Events(10, string(events.KindTransition), &entries); err != nil {
			return false
		}
		for _, entry := range entries {
			if entry.Category == string(types.NetworkDown) {
				return true
			}
		}
		return false
	}, "journaled network_down event")

	testutil.AssertNoError(t, client.Stop(), "Stop()")
	select {
	case err := <-errCh:
		testutil.AssertNoError(t, err, "Run()")
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after stop command")
	}

	if e.RequestStop() {
		t.Error("RequestStop() after Run returned = true")
	}
	if _, err := os.Stat(cfg.Daemon.SocketPath); !os.IsNotExist(err) {
		t.Error("socket file left behind")
	}
	if _, err := os.Stat(cfg.Resolve(cfg.Journal.Path)); err != nil {
		t.Errorf("journal database missing: %v", err)
	}
}

func TestPruneJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Enabled = true
	cfg.Journal.Retention = time.Hour
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newEngine(t, cfg, WithClock(func() time.Time { return now }))

	j := journal.New(cfg.Resolve(cfg.Journal.Path), true)
	testutil.AssertNoError(t, j.Init(), "journal Init()")
	defer func() { _ = j.Close() }()
	for _, at := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Minute)} {
		ev := events.Lifecycle(events.KindMonitorStarted, "", "watching", nil)
		ev.Time = at
		testutil.AssertNoError(t, j.Record(ev), "Record()")
	}

	e.pruneJournal(j)
	n, err := j.Count("")
	testutil.AssertNoError(t, err, "Count()")
	if n != 1 {
		t.Errorf("journal holds %d entries after pruning, want 1", n)
	}
}
