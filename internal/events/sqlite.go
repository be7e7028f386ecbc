package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tonelift/api/internal/model"
)

// Sink is the durable append-only side of the event log.
type Sink interface {
	Append(ctx context.Context, ev *model.ClassificationEvent) error
	Recent(ctx context.Context, n int) ([]model.ClassificationEvent, error)
	Close() error
}

// SQLiteSink appends events to a local SQLite database. It survives
// process restarts; the in-memory ring does not, so the two views may
// diverge.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// OpenSQLiteSink initializes or connects to the event database.
func OpenSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure event db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS classification_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		job_id TEXT,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &SQLiteSink{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts one event. Events are never updated or deleted.
func (s *SQLiteSink) Append(ctx context.Context, ev *model.ClassificationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO classification_events (id, event_type, job_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID,
		string(ev.Type),
		ev.JobID,
		string(payload),
		ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]model.ClassificationEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM classification_events ORDER BY created_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.ClassificationEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev model.ClassificationEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal event payload: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
