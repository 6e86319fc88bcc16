package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Entry is one journaled event
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source,omitempty"`
	// Category holds the log category, or the transition kind
	Category string `json:"category,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message"`
	Error    string `json:"error,omitempty"`
}

// Query narrows a journal read. Zero fields match everything.
type Query struct {
	Kind   string
	Source string
	Since  time.Time
	Limit  int
}

// DefaultQueryLimit applies when a query sets no limit
const DefaultQueryLimit = 50

// Recent returns matching entries, newest first
func (d *DB) Recent(q Query) ([]Entry, error) {
	db := d.GetDB()
	if db == nil {
		return nil, fmt.Errorf("journal not initialized")
	}
	if q.Limit <= 0 {
		q.Limit = DefaultQueryLimit
	}

	query := `
		SELECT id, ts, kind, source, category, severity, message, error
		FROM events
		WHERE (? = '' OR kind = ?)
		  AND (? = '' OR source = ?)
		  AND ts >= ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`
	var since int64
	if !q.Since.IsZero() {
		since = q.Since.UnixNano()
	}

	rows, err := db.Query(query, q.Kind, q.Kind, q.Source, q.Source, since, q.Limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var source, category, severity, errMsg sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &source, &category, &severity, &e.Message, &errMsg); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Source = source.String
		e.Category = category.String
		e.Severity = severity.String
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns how many events of kind were recorded; empty kind counts all
func (d *DB) Count(kind string) (int, error) {
	db := d.GetDB()
	if db == nil {
		return 0, fmt.Errorf("journal not initialized")
	}
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE (? = '' OR kind = ?)`, kind, kind).Scan(&n)
	return n, err
}

// Prune deletes entries older than cutoff and returns how many went
func (d *DB) Prune(cutoff time.Time) (int64, error) {
	db := d.GetDB()
	if db == nil {
		return 0, fmt.Errorf("journal not initialized")
	}
	res, err := db.Exec(`DELETE FROM events WHERE ts < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}
