// Package history records calls and their channel status changes in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"firestige.xyz/callwatch/internal/session"
)

// Call is one recorded call. EndedAt is zero while the call is ongoing.
type Call struct {
	ID        string    `json:"id" yaml:"id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
	Events    int       `json:"events" yaml:"events"`
}

func (c Call) Duration() time.Duration {
	if c.EndedAt.IsZero() {
		return 0
	}
	return c.EndedAt.Sub(c.StartedAt)
}

// Event is a channel status change inside a call.
type Event struct {
	CallID  string
	At      time.Time
	Channel string
	Status  session.Status
}

type Store struct {
	db *sql.DB
}

// DefaultPath is $XDG_DATA_HOME/callwatch/history.db, falling back to
// ~/.local/share.
func DefaultPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "callwatch", "history.db"), nil
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		);
		CREATE TABLE IF NOT EXISTS events (
			call_id TEXT NOT NULL REFERENCES calls(id),
			at INTEGER NOT NULL,
			channel TEXT NOT NULL,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS events_call ON events(call_id, at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) StartCall(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (id, started_at) VALUES (?, ?)`, id, at.UnixMilli())
	return err
}

func (s *Store) EndCall(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE calls SET ended_at = ? WHERE id = ?`, at.UnixMilli(), id)
	return err
}

func (s *Store) AddEvent(ctx context.Context, e Event) error {
	status, err := e.Status.MarshalText()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (call_id, at, channel, status) VALUES (?, ?, ?, ?)`,
		e.CallID, e.At.UnixMilli(), e.Channel, string(status))
	return err
}

// Calls returns up to limit calls, most recent first.
func (s *Store) Calls(ctx context.Context, limit int) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.started_at, c.ended_at, COUNT(e.call_id)
		FROM calls c LEFT JOIN events e ON e.call_id = c.id
		GROUP BY c.id
		ORDER BY c.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var (
			c     Call
			start int64
			end   sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &start, &end, &c.Events); err != nil {
			return nil, err
		}
		c.StartedAt = time.UnixMilli(start)
		if end.Valid {
			c.EndedAt = time.UnixMilli(end.Int64)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Events returns the events of one call in time order.
func (s *Store) Events(ctx context.Context, callID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, channel, status FROM events WHERE call_id = ? ORDER BY at, rowid`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			at     int64
			status string
		)
		e := Event{CallID: callID}
		if err := rows.Scan(&at, &e.Channel, &status); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(at)
		e.Status = parseStatus(status)
		events = append(events, e)
	}
	return events, rows.Err()
}

func parseStatus(s string) session.Status {
	switch s {
	case "on":
		return session.StatusOn
	case "off":
		return session.StatusOff
	default:
		return session.StatusUnknown
	}
}
