// Package testutil provides fakes and helpers shared by devwatch tests
package testutil

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/probe"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

// FakeRunner answers commands from a table keyed by "name arg1 arg2..."
type FakeRunner struct {
	mu        sync.Mutex
	Responses map[string]probe.RunResult
	// Default is returned for commands missing from Responses
	Default probe.RunResult
	calls   []probe.Command
}

// NewFakeRunner creates a runner that reports every unknown tool as missing
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Responses: make(map[string]probe.RunResult),
		Default:   probe.RunResult{ExitCode: -1, Err: dwerrors.ErrProbeUnavailable},
	}
}

// On registers the result for a command line
func (f *FakeRunner) On(cmdline string, res probe.RunResult) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[cmdline] = res
	return f
}

// Run implements probe.Runner
func (f *FakeRunner) Run(_ context.Context, cmd probe.Command) probe.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)
	key := strings.TrimSpace(cmd.Name + " " + strings.Join(cmd.Args, " "))
	if res, ok := f.Responses[key]; ok {
		return res
	}
	return f.Default
}

// Calls returns every command run so far
func (f *FakeRunner) Calls() []probe.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]probe.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount counts runs of the named tool
func (f *FakeRunner) CallCount(name string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}

// FakeLister is a static process table
type FakeLister struct {
	Procs []probe.ProcInfo
	Err   error
}

// ListProcesses implements probe.ProcessLister
func (f FakeLister) ListProcesses(context.Context) ([]probe.ProcInfo, error) {
	return f.Procs, f.Err
}

// Sources is a probe set backed by plain values. Fields are read under a
// lock so tests can change them between snapshots.
type Sources struct {
	mu        sync.Mutex
	processes map[string]types.Process
	network   []types.Endpoint
	quality   types.Quality
	vcs       types.VersionControl
	structure types.Structure
	calls     int
	delay     time.Duration
	panicMsg  string
}

// NewSources returns sources describing an idle but healthy project
func NewSources() *Sources {
	return &Sources{
		processes: map[string]types.Process{},
		quality: types.Quality{
			TypeScript: types.TypeCheckResult{Available: true, Clean: true},
			Lint:       types.LintResult{Available: true},
			Build:      types.BuildResult{Available: true, Success: true},
		},
		vcs: types.VersionControl{Available: true, Branch: "main", Clean: true},
	}
}

// Set returns a probe.Set reading from s
func (s *Sources) Set() probe.Set {
	return probe.Set{
		Processes: processSource{s},
		Network:   networkSource{s},
		Quality:   qualitySource{s},
		VCS:       vcsSource{s},
		Structure: structureSource{s},
	}
}

// SetProcesses replaces the process table
func (s *Sources) SetProcesses(p map[string]types.Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes = p
}

// SetNetwork replaces the endpoint list
func (s *Sources) SetNetwork(eps []types.Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = eps
}

// SetQuality replaces the quality facet
func (s *Sources) SetQuality(q types.Quality) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = q
}

// SetDelay makes every probe sleep before answering
func (s *Sources) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetPanic makes the process probe panic with msg; empty clears it
func (s *Sources) SetPanic(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicMsg = msg
}

// ProcessCalls counts process probe invocations
func (s *Sources) ProcessCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Sources) wait() {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

type processSource struct{ s *Sources }

func (p processSource) Probe(context.Context) map[string]types.Process {
	p.s.wait()
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.calls++
	if p.s.panicMsg != "" {
		panic(p.s.panicMsg)
	}
	out := make(map[string]types.Process, len(p.s.processes))
	for k, v := range p.s.processes {
		out[k] = v
	}
	return out
}

type networkSource struct{ s *Sources }

func (n networkSource) Probe(context.Context) []types.Endpoint {
	n.s.wait()
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	out := make([]types.Endpoint, len(n.s.network))
	copy(out, n.s.network)
	return out
}

type qualitySource struct{ s *Sources }

func (q qualitySource) Probe(context.Context) types.Quality {
	q.s.wait()
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	return q.s.quality
}

type vcsSource struct{ s *Sources }

func (v vcsSource) Probe(context.Context) types.VersionControl {
	v.s.wait()
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.s.vcs
}

type structureSource struct{ s *Sources }

func (st structureSource) Probe(context.Context) types.Structure {
	st.s.wait()
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.s.structure
}

// StatusServer starts a server answering every request with status and
// returns it with its port
func StatusServer(t *testing.T, status int) (*httptest.Server, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split listener address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return srv, port
}

// SlowServer starts a server that waits for delay, or until the client
// gives up, before answering. It returns the server port.
func SlowServer(t *testing.T, delay time.Duration) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

// FreePort returns a local port with nothing listening on it
func FreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

// WriteFile creates dir/name with content, making parent directories
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// AppendLine appends one line to an existing file
func AppendLine(t *testing.T, path, line string) {
	t.Helper()
	//nolint:gosec // G304: test file path
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintln(f, line); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

// WaitWithTimeout waits for a condition with timeout
func WaitWithTimeout(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
		}
	}
}

// AssertNoError fails the test if error is not nil
func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", message, err)
	}
}

// AssertError fails the test if error is nil
func AssertError(t *testing.T, err error, message string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error but got nil", message)
	}
}

// AssertContains fails if the string doesn't contain the substring
func AssertContains(t *testing.T, str, substr string) {
	t.Helper()
	if !strings.Contains(str, substr) {
		t.Fatalf("Expected string to contain %q, got: %s", substr, str)
	}
}
