package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
)

func TestShouldProcessEvent(t *testing.T) {
	manifests := map[string]bool{"/p/package.json": true, "/p/turbo.json": true}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write manifest", fsnotify.Event{Name: "/p/package.json", Op: fsnotify.Write}, true},
		{"create manifest", fsnotify.Event{Name: "/p/turbo.json", Op: fsnotify.Create}, true},
		{"remove manifest", fsnotify.Event{Name: "/p/package.json", Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: "/p/package.json", Op: fsnotify.Chmod}, false},
		{"unrelated file", fsnotify.Event{Name: "/p/src/index.ts", Op: fsnotify.Write}, false},
		{"swap file", fsnotify.Event{Name: "/p/.package.json.swp", Op: fsnotify.Write}, false},
		{"backup file", fsnotify.Event{Name: "/p/package.json~", Op: fsnotify.Write}, false},
		{"unclean path", fsnotify.Event{Name: "/p/./package.json", Op: fsnotify.Write}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldProcessEvent(tt.event, manifests); got != tt.want {
				t.Errorf("ShouldProcessEvent(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

type changes struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *changes) record(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, paths)
}

func (c *changes) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *changes) last() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

func TestWatcherReportsManifestChanges(t *testing.T) {
	root := t.TempDir()
	pkg := testutil.WriteFile(t, root, "package.json", `{"name":"app"}`)
	testutil.WriteFile(t, root, "README.md", "hello")

	got := &changes{}
	w, err := New(Options{
		Manifests: func() []string { return []string{pkg, filepath.Join(root, "turbo.json")} },
		OnChange:  got.record,
		Debounce:  50 * time.Millisecond,
	})
	testutil.AssertNoError(t, err, "New()")
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	// Unrelated files never trigger
	testutil.WriteFile(t, root, "README.md", "changed")
	time.Sleep(200 * time.Millisecond)
	if n := got.count(); n != 0 {
		t.Fatalf("OnChange called %d times for an unrelated file", n)
	}

	// A burst of writes is coalesced
	for i := 0; i < 3; i++ {
		testutil.WriteFile(t, root, "package.json", `{"name":"app","version":"1.0.`+string(rune('0'+i))+`"}`)
	}
	testutil.WaitWithTimeout(t, 3*time.Second, func() bool { return got.count() >= 1 }, "manifest change")
	time.Sleep(200 * time.Millisecond)
	if n := got.count(); n != 1 {
		t.Errorf("OnChange called %d times, want 1 for one burst", n)
	}
	if last := got.last(); len(last) != 1 || last[0] != filepath.Clean(pkg) {
		t.Errorf("changed paths = %v", last)
	}

	// Creating a watched file that did not exist also counts
	testutil.WriteFile(t, root, "turbo.json", `{}`)
	testutil.WaitWithTimeout(t, 3*time.Second, func() bool { return got.count() >= 2 }, "turbo.json creation")
}

func TestWatcherPicksUpNewWorkspaces(t *testing.T) {
	root := t.TempDir()
	pkg := testutil.WriteFile(t, root, "package.json", `{}`)
	wsDir := filepath.Join(root, "apps", "web")
	wsPkg := filepath.Join(wsDir, "package.json")

	var mu sync.Mutex
	manifests := []string{pkg}
	got := &changes{}

	w, err := New(Options{
		Manifests: func() []string {
			mu.Lock()
			defer mu.Unlock()
			return append([]string(nil), manifests...)
		},
		OnChange: got.record,
		Debounce: 30 * time.Millisecond,
	})
	testutil.AssertNoError(t, err, "New()")
	w.Start(context.Background())
	t.Cleanup(w.Stop)

	// The workspace appears; the root manifest changes to declare it
	if err := os.MkdirAll(wsDir, 0o750); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, wsDir, "package.json", `{"name":"web"}`)
	mu.Lock()
	manifests = append(manifests, wsPkg)
	mu.Unlock()
	testutil.WriteFile(t, root, "package.json", `{"workspaces":["apps/*"]}`)

	testutil.WaitWithTimeout(t, 3*time.Second, func() bool { return got.count() >= 1 }, "root change")
	testutil.WaitWithTimeout(t, 3*time.Second, func() bool { return len(w.Watched()) == 2 }, "workspace registered")

	testutil.WriteFile(t, wsDir, "package.json", `{"name":"web","private":true}`)
	testutil.WaitWithTimeout(t, 3*time.Second, func() bool {
		last := got.last()
		return len(last) == 1 && last[0] == wsPkg
	}, "workspace manifest change")
}

func TestNewRequiresCallbacks(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without callbacks should fail")
	}
}
