// Package journal records published events to a SQLite database so that
// they can be queried after the fact
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dimasma0305/devwatch/internal/devwatch/events"
	"github.com/dimasma0305/devwatch/internal/log"

	// Import pure-Go SQLite driver for database/sql (no CGO required)
	_ "modernc.org/sqlite"
)

// DB wraps the journal database
type DB struct {
	db      *sql.DB
	mu      sync.RWMutex
	enabled bool
	path    string
}

// New creates a journal. A disabled journal accepts every call and stores
// nothing.
func New(dbPath string, enabled bool) *DB {
	return &DB{
		path:    dbPath,
		enabled: enabled,
	}
}

// Init opens the database and creates the schema
func (d *DB) Init() error {
	if !d.enabled {
		log.DebugH2("Event journal disabled")
		return nil
	}

	log.DebugH2("Opening event journal: %s", d.path)
	if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	// WAL lets the CLI read while the daemon writes
	db, err := sql.Open("sqlite", d.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping journal: %w", err)
	}

	d.mu.Lock()
	d.db = db
	d.mu.Unlock()

	if err := d.createTables(); err != nil {
		return fmt.Errorf("failed to create journal tables: %w", err)
	}
	return nil
}

func (d *DB) createTables() error {
	db := d.GetDB()
	if db == nil {
		return fmt.Errorf("journal not initialized")
	}

	createEventsTable := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			kind TEXT NOT NULL,
			source TEXT,
			category TEXT,
			severity TEXT,
			message TEXT NOT NULL,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	`
	if _, err := db.Exec(createEventsTable); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// GetDB returns the underlying connection, nil before Init
func (d *DB) GetDB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// IsEnabled reports whether the journal stores anything
func (d *DB) IsEnabled() bool {
	return d.enabled
}

// Record stores one event
func (d *DB) Record(e events.Event) error {
	if !d.enabled {
		return nil
	}
	db := d.GetDB()
	if db == nil {
		return fmt.Errorf("journal not initialized")
	}

	row := EntryFor(e)
	_, err := db.Exec(`
		INSERT INTO events (ts, kind, source, category, severity, message, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.Timestamp.UnixNano(), row.Kind, row.Source, row.Category, row.Severity, row.Message, row.Error)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Follow records every event published on bus until the returned stop
// function is called. Recording happens on its own goroutine; events are
// dropped when it falls more than buffer events behind.
func (d *DB) Follow(bus *events.Bus, buffer int) (stop func()) {
	if !d.enabled {
		return func() {}
	}
	ch, cancel := bus.SubscribeChan(buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if err := d.Record(e); err != nil {
				log.DebugH3("journal: %v", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// EntryFor flattens an event into its journal columns
func EntryFor(e events.Event) Entry {
	row := Entry{
		Timestamp: e.Time,
		Kind:      string(e.Kind),
		Source:    e.Source,
		Message:   e.Message,
		Error:     e.Error,
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now()
	}
	switch {
	case e.Log != nil:
		row.Category = string(e.Log.Category)
		row.Severity = string(e.Log.Severity)
		row.Message = e.Log.RawLine
	case e.Transition != nil:
		row.Category = string(e.Transition.Kind)
		row.Message = e.Transition.String()
	}
	return row
}
