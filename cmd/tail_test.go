package cmd

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/config"
	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/logwatch"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPrintSink(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	sink := &printSink{w: &buf}
	sink.Publish(events.FromTransition(types.NewProcessStarted("vite", 42), time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)))

	want := "08:00:00 [process_started] vite started (pid 42)\n"
	if buf.String() != want {
		t.Errorf("printSink output = %q, want %q", buf.String(), want)
	}
}

func TestRunTail(t *testing.T) {
	plainOutput(t)
	cfg := config.Default(t.TempDir())
	cfg.PollLogs = true
	logPath := logwatch.Path(cfg.Resolve(cfg.LogsDir), "web")

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() { errCh <- runTail(ctx, out, cfg, []string{"web"}, false) }()

	// the watcher creates the log file before it starts following
	testutil.WaitWithTimeout(t, 5*time.Second, func() bool {
		_, err := os.Stat(logPath)
		return err == nil
	}, "log file to be created")

	testutil.WaitWithTimeout(t, 5*time.Second, func() bool {
		testutil.AppendLine(t, logPath, "Error: Cannot find module 'left-pad'")
		return strings.Contains(out.String(), "web: Error: Cannot find module 'left-pad'")
	}, "classified error line to be printed")

	testutil.AppendLine(t, logPath, "compiling pages")
	cancel()
	select {
	case err := <-errCh:
		testutil.AssertNoError(t, err, "runTail()")
	case <-time.After(10 * time.Second):
		t.Fatal("runTail() did not return after cancel")
	}
	if strings.Contains(out.String(), "compiling pages") {
		t.Error("info lines should be skipped without --info")
	}
}

func TestRunTailRejectsBadName(t *testing.T) {
	cfg := config.Default(t.TempDir())
	err := runTail(context.Background(), &bytes.Buffer{}, cfg, []string{"../escape"}, false)
	testutil.AssertError(t, err, "runTail() with a path in the log name")
}
