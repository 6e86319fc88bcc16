// Package filesystem watches the project's manifest files and reports when
// the detected structure may have changed
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultDebounce coalesces the burst of events one save produces
const DefaultDebounce = 150 * time.Millisecond

// Options configures a manifest Watcher
type Options struct {
	// Manifests returns the files to watch; it is called again after every
	// change so that newly added workspaces are picked up
	Manifests func() []string
	// OnChange runs once per debounced burst with the changed paths
	OnChange func(paths []string)
	Debounce time.Duration
}

// Watcher follows manifest files through their parent directories, which
// keeps it working across editors that save by renaming.
type Watcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	mu        sync.Mutex
	manifests map[string]bool
	dirs      map[string]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher and registers the current manifests
func New(opts Options) (*Watcher, error) {
	if opts.Manifests == nil || opts.OnChange == nil {
		return nil, fmt.Errorf("manifest watcher needs Manifests and OnChange")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		opts:      opts,
		fsw:       fsw,
		manifests: make(map[string]bool),
		dirs:      make(map[string]bool),
	}
	w.sync()
	return w, nil
}

// Start runs the event loop until ctx is cancelled or Stop is called
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop ends the event loop and releases the underlying watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	if err := w.fsw.Close(); err != nil {
		log.DebugH3("close file watcher: %v", err)
	}
}

// Watched lists the manifest paths currently tracked
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.manifests))
	for p := range w.manifests {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// sync re-reads the manifest list and adds watches for new directories
func (w *Watcher) sync() {
	manifests := make(map[string]bool)
	for _, p := range w.opts.Manifests() {
		manifests[filepath.Clean(p)] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.manifests = manifests
	for p := range manifests {
		dir := filepath.Dir(p)
		if w.dirs[dir] {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			log.DebugH3("watch %s: %v", dir, err)
			continue
		}
		w.dirs[dir] = true
		log.DebugH3("watching manifests in %s", dir)
	}
}

func (w *Watcher) loop(ctx context.Context) {
	var (
		pending = make(map[string]bool)
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.mu.Lock()
			relevant := ShouldProcessEvent(event, w.manifests)
			w.mu.Unlock()
			if !relevant {
				continue
			}
			log.DebugH2("Manifest change detected: %s (%s)", event.Name, event.Op.String())
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			w.opts.OnChange(paths)
			w.sync()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error("Manifest watcher error: %v", err)
		}
	}
}
