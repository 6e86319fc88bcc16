package devwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/filesystem"
	"github.com/dimasma0305/devwatch/internal/devwatch/journal"
	"github.com/dimasma0305/devwatch/internal/devwatch/notify"
	"github.com/dimasma0305/devwatch/internal/devwatch/socket"
	"github.com/dimasma0305/devwatch/internal/devwatch/stream"
	"github.com/dimasma0305/devwatch/internal/log"
)

const (
	journalBuffer   = 256
	shutdownTimeout = 10 * time.Second
)

// Run is the body of a monitor process. It opens the journal, connects the
// notification sinks, starts the manifest watcher, the event stream and the
// control socket, then monitors until ctx is cancelled or a stop command
// arrives. Components are torn down in reverse order.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.stopRun != nil {
		e.mu.Unlock()
		return fmt.Errorf("monitor process is already running")
	}
	e.stopRun = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.stopRun = nil
		e.mu.Unlock()
	}()

	log.Info("Starting devwatch for %s", e.cfg.Root)

	// Journal
	j := journal.New(e.cfg.Resolve(e.cfg.Journal.Path), e.cfg.Journal.Enabled)
	if err := j.Init(); err != nil {
		return fmt.Errorf("failed to initialize journal: %w", err)
	}
	defer func() {
		if err := j.Close(); err != nil {
			log.Error("Failed to close journal: %v", err)
		}
	}()
	e.pruneJournal(j)
	stopJournal := j.Follow(e.bus, journalBuffer)
	defer stopJournal()
	e.setJournal(j)
	defer e.setJournal(nil)

	// Notifications
	notifier, err := notify.New(e.Project(), e.cfg.Notify)
	if err != nil {
		return fmt.Errorf("failed to configure notifications: %w", err)
	}
	if notifier != nil {
		defer notifier.Close()
		unsubscribe := e.bus.Subscribe(notifier.Handle)
		defer unsubscribe()
	}

	// Manifest watcher
	manifests, err := filesystem.New(filesystem.Options{
		Manifests: e.manifests,
		OnChange:  e.manifestsChanged,
	})
	if err != nil {
		log.Warn("Manifest watcher disabled: %v", err)
	} else {
		manifests.Start(ctx)
		defer manifests.Stop()
		log.DebugH2("Watching manifests: %v", manifests.Watched())
	}

	// Event stream
	if e.cfg.Stream.Enabled {
		srv := stream.New(e.bus, e)
		if err := srv.Start(e.cfg.Stream.Addr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("%v", err)
			}
		}()
	}

	// Control socket
	if e.cfg.Daemon.SocketEnabled {
		srv := socket.NewServer(e.cfg.Resolve(e.cfg.Daemon.SocketPath), e.Router())
		if err := srv.Init(); err != nil {
			return fmt.Errorf("failed to initialize socket server: %w", err)
		}
		socketDone := make(chan struct{})
		go func() {
			defer close(socketDone)
			srv.Run(ctx)
		}()
		defer func() {
			if err := srv.Close(); err != nil {
				log.Error("Failed to close socket server: %v", err)
			}
			<-socketDone
		}()
	}

	if err := e.StartMonitor(ctx); err != nil {
		return err
	}
	defer func() {
		e.StopMonitor()
		waitCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := e.WaitMonitor(waitCtx); err != nil {
			log.Error("Timeout waiting for monitor to finish")
		}
	}()

	log.Info("devwatch started successfully")
	<-ctx.Done()
	log.Info("Stopping devwatch...")
	return nil
}

// RequestStop ends a running Run. It reports whether one was running.
func (e *Engine) RequestStop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopRun == nil {
		return false
	}
	e.stopRun()
	return true
}

func (e *Engine) setJournal(j *journal.DB) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.journal = j
}

func (e *Engine) openJournal() *journal.DB {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.journal == nil || !e.journal.IsEnabled() {
		return nil
	}
	return e.journal
}

// pruneJournal applies the retention window to an open journal
func (e *Engine) pruneJournal(j *journal.DB) {
	retention := e.cfg.Journal.Retention
	if !j.IsEnabled() || retention <= 0 {
		return
	}
	removed, err := j.Prune(e.now().Add(-retention))
	if err != nil {
		log.Warn("%v", err)
		return
	}
	kept, err := j.Count("")
	if err != nil {
		log.Warn("Failed to count journal entries: %v", err)
		return
	}
	log.DebugH2("Journal: pruned %d entries older than %v, %d kept", removed, retention, kept)
}
