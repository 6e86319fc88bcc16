package journal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/devwatch/testutil"
	"github.com/dimasma0305/devwatch/internal/devwatch/types"
)

func openJournal(t *testing.T) *DB {
	t.Helper()
	db := New(filepath.Join(t.TempDir(), "state", "journal.db"), true)
	testutil.AssertNoError(t, db.Init(), "Init()")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitCreatesDatabase(t *testing.T) {
	db := openJournal(t)

	if _, err := os.Stat(db.path); err != nil {
		t.Errorf("journal file was not created: %v", err)
	}
	if err := db.GetDB().Ping(); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestDisabledJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db := New(path, false)
	testutil.AssertNoError(t, db.Init(), "Init()")

	if err := db.Record(events.Lifecycle(events.KindMonitorStarted, "", "x", nil)); err != nil {
		t.Errorf("Record() on disabled journal = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("disabled journal created %s", path)
	}
	bus := events.NewBus(0)
	db.Follow(bus, 4)()
}

func TestRecordAndQuery(t *testing.T) {
	db := openJournal(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []events.Event{
		events.FromLog(types.ClassifiedEvent{
			Source: "dev", RawLine: "Error: boom", Category: types.CategoryError,
			Severity: types.SeverityError, Timestamp: base,
		}),
		events.FromTransition(types.NewProcessCrashed("vite", 4242), base.Add(time.Second)),
		{Kind: events.KindMonitorError, Time: base.Add(2 * time.Second), Message: "tick failed", Error: "monitor tick failed: x"},
	}
	for _, e := range records {
		testutil.AssertNoError(t, db.Record(e), "Record()")
	}

	all, err := db.Recent(Query{})
	testutil.AssertNoError(t, err, "Recent()")
	if len(all) != 3 {
		t.Fatalf("Recent() returned %d entries, want 3", len(all))
	}
	// Newest first
	if all[0].Kind != string(events.KindMonitorError) || all[0].Error != "monitor tick failed: x" {
		t.Errorf("newest entry = %+v", all[0])
	}

	crash := all[1]
	if crash.Category != string(types.ProcessCrashed) || crash.Message != "vite stopped (last pid 4242)" {
		t.Errorf("transition entry = %+v", crash)
	}
	if !crash.Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("Timestamp = %v, want %v", crash.Timestamp, base.Add(time.Second))
	}

	logs, err := db.Recent(Query{Kind: string(events.KindLog), Source: "dev"})
	testutil.AssertNoError(t, err, "Recent(kind=log)")
	if len(logs) != 1 || logs[0].Message != "Error: boom" || logs[0].Severity != "error" {
		t.Errorf("log entries = %+v", logs)
	}

	since, err := db.Recent(Query{Since: base.Add(time.Second)})
	testutil.AssertNoError(t, err, "Recent(since)")
	if len(since) != 2 {
		t.Errorf("Recent(since) returned %d, want 2", len(since))
	}

	limited, err := db.Recent(Query{Limit: 1})
	testutil.AssertNoError(t, err, "Recent(limit)")
	if len(limited) != 1 {
		t.Errorf("Recent(limit=1) returned %d", len(limited))
	}

	n, err := db.Count("")
	testutil.AssertNoError(t, err, "Count()")
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestPrune(t *testing.T) {
	db := openJournal(t)
	old := time.Now().Add(-48 * time.Hour)

	testutil.AssertNoError(t, db.Record(events.Event{Kind: events.KindMonitorStarted, Time: old, Message: "old"}), "Record(old)")
	testutil.AssertNoError(t, db.Record(events.Event{Kind: events.KindMonitorStarted, Time: time.Now(), Message: "new"}), "Record(new)")

	removed, err := db.Prune(time.Now().Add(-24 * time.Hour))
	testutil.AssertNoError(t, err, "Prune()")
	if removed != 1 {
		t.Errorf("Prune() removed %d, want 1", removed)
	}
	left, _ := db.Recent(Query{})
	if len(left) != 1 || left[0].Message != "new" {
		t.Errorf("remaining = %+v", left)
	}
}

func TestFollowRecordsBusEvents(t *testing.T) {
	db := openJournal(t)
	bus := events.NewBus(0)
	stop := db.Follow(bus, 16)

	for i := 0; i < 5; i++ {
		bus.Publish(events.Lifecycle(events.KindMonitorError, "", "tick failed", errors.New("boom")))
	}
	testutil.WaitWithTimeout(t, 5*time.Second, func() bool {
		n, err := db.Count(string(events.KindMonitorError))
		return err == nil && n == 5
	}, "journaled events")

	stop()
	stop()
	bus.Publish(events.Lifecycle(events.KindMonitorError, "", "after stop", nil))
	time.Sleep(50 * time.Millisecond)
	if n, _ := db.Count(""); n != 5 {
		t.Errorf("Count() after stop = %d, want 5", n)
	}
}

func TestUninitializedJournal(t *testing.T) {
	db := New(filepath.Join(t.TempDir(), "j.db"), true)
	if err := db.Record(events.Event{Kind: events.KindLog}); err == nil {
		t.Error("Record() before Init should fail")
	}
	if _, err := db.Recent(Query{}); err == nil {
		t.Error("Recent() before Init should fail")
	}
	testutil.AssertNoError(t, db.Close(), "Close() before Init")
}
