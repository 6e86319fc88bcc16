// Package logwatch follows dev server log files and publishes every new
// line as a classified event
package logwatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tail "github.com/hpcloud/tail"

	"github.com/dimasma0305/devwatch/internal/devwatch/classify"
	dwerrors "github.com/dimasma0305/devwatch/internal/devwatch/errors"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
	"github.com/dimasma0305/devwatch/internal/log"
)

// DefaultStopGrace bounds how long Stop waits for the tail task
const DefaultStopGrace = 2 * time.Second

// Config controls how log files are located and followed
type Config struct {
	LogsDir string
	// IncludeInfo also publishes lines classified as info
	IncludeInfo bool
	StopGrace   time.Duration
	// Poll checks the file by polling instead of inotify
	Poll bool
}

// Sink receives classified events
type Sink interface {
	Publish(events.Event)
}

// Handle owns one running log follower
type Handle struct {
	LogName  string
	FilePath string

	cfg      Config
	sink     Sink
	t        *tail.Tail
	stopping atomic.Bool
	once     sync.Once
	ready    chan struct{}
	done     chan struct{}
}

// Path returns the file a log name maps to
func Path(logsDir, logName string) string {
	return filepath.Join(logsDir, logName+".log")
}

// Watch starts following <LogsDir>/<logName>.log, creating the file when
// missing. Only lines appended after Watch returns are reported.
func Watch(cfg Config, logName string, sink Sink) (*Handle, error) {
	if logName == "" || strings.ContainsAny(logName, `/\`) || logName == "." || logName == ".." {
		return nil, dwerrors.Wrapf(dwerrors.ErrWatcherStart, "invalid log name %q", logName)
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}

	path := Path(cfg.LogsDir, logName)
	offset, err := ensureFile(path)
	if err != nil {
		return nil, dwerrors.Wrap(dwerrors.ErrWatcherStart, err.Error())
	}

	t, err := tail.TailFile(path, tail.Config{
		ReOpen:    false,
		Follow:    true,
		MustExist: true,
		Poll:      cfg.Poll,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, dwerrors.Wrapf(dwerrors.ErrWatcherStart, "tail %s: %v", path, err)
	}

	h := &Handle{
		LogName:  logName,
		FilePath: path,
		cfg:      cfg,
		sink:     sink,
		t:        t,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	close(h.ready)
	go h.run()

	log.DebugH2("watching %s", path)
	return h, nil
}

// ensureFile creates path and its directory as needed and returns the
// current file size
func ensureFile(path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, fmt.Errorf("create logs directory: %w", err)
	}
	//nolint:gosec // G304: path is built from the configured logs directory
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// run drains the tail task until its line channel closes. After Close it
// keeps draining so the tail task never blocks on a send.
func (h *Handle) run() {
	defer close(h.done)

	for line := range h.t.Lines {
		if h.stopping.Load() || line == nil {
			continue
		}
		if line.Err != nil {
			log.DebugH3("%s: %v", h.LogName, line.Err)
			continue
		}

		res := classify.Classify(line.Text)
		if res.Category == types.CategoryInfo && !h.cfg.IncludeInfo {
			continue
		}
		h.sink.Publish(events.FromLog(types.ClassifiedEvent{
			Source:    h.LogName,
			RawLine:   line.Text,
			Category:  res.Category,
			Severity:  res.Severity,
			Payload:   res.Payload,
			Timestamp: line.Time,
		}))
	}

	if h.stopping.Load() {
		return
	}
	// The tail task has already returned once Lines is closed
	err := h.t.Wait()
	log.DebugH2("watcher for %s closed: %v", h.LogName, err)
	h.sink.Publish(events.Lifecycle(events.KindWatcherClosed, h.LogName, "log watcher closed", err))
}

// Ready is closed once the file is open and its read position fixed
func (h *Handle) Ready() <-chan struct{} {
	return h.ready
}

// Done is closed when the handle has stopped delivering events
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Close asks the tail task to terminate without waiting for it. Events
// from the handle stop immediately.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.stopping.Store(true)
		go func() {
			if err := h.t.Stop(); err != nil {
				log.DebugH3("tail stop for %s: %v", h.LogName, err)
			}
		}()
	})
}

// Wait blocks until the tail task finished or grace elapsed, in which case
// the task is abandoned
func (h *Handle) Wait(grace time.Duration) error {
	if grace <= 0 {
		grace = h.cfg.StopGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.done:
		h.t.Cleanup()
		return nil
	case <-timer.C:
		h.t.Cleanup()
		return dwerrors.Wrapf(dwerrors.ErrWatcherStopTimeout, "%s after %v", h.LogName, grace)
	}
}

// Stop closes the handle and waits up to the configured grace period
func (h *Handle) Stop() error {
	h.Close()
	return h.Wait(h.cfg.StopGrace)
}
