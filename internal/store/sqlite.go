// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists supervision events with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS supervision_events (
			id TEXT PRIMARY KEY,
			node TEXT NOT NULL,
			agent TEXT NOT NULL,
			event TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			restarts INTEGER NOT NULL DEFAULT 0,
			addr TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_supervision_events_agent
			ON supervision_events(agent, created_at);
		CREATE INDEX IF NOT EXISTS idx_supervision_events_event
			ON supervision_events(event, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

// SaveEvent appends a supervision event to the ledger. A missing ID
// or timestamp is filled in.
func (s *SQLiteStore) SaveEvent(ctx context.Context, event *SupervisionEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supervision_events (id, node, agent, event, reason, restarts, addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Node, event.Agent, event.Event, event.Reason, event.Restarts, event.Addr, event.At)
	if err != nil {
		return fmt.Errorf("inserting supervision event: %w", err)
	}

	return nil
}

// GetEvent retrieves a single event by ID
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*SupervisionEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, node, agent, event, reason, restarts, addr, created_at
		FROM supervision_events WHERE id = ?
	`, id)

	var event SupervisionEvent
	err := row.Scan(&event.ID, &event.Node, &event.Agent, &event.Event,
		&event.Reason, &event.Restarts, &event.Addr, &event.At)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning supervision event: %w", err)
	}

	return &event, nil
}

// ListEvents returns matching events, newest first
func (s *SQLiteStore) ListEvents(ctx context.Context, p ListEventsParams) ([]*SupervisionEvent, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var conditions []string
	var args []any
	if p.Agent != "" {
		conditions = append(conditions, "agent = ?")
		args = append(args, p.Agent)
	}
	if p.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, p.Event)
	}
	if p.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, p.Since.UTC())
	}

	query := "SELECT id, node, agent, event, reason, restarts, addr, created_at FROM supervision_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying supervision events: %w", err)
	}
	defer rows.Close()

	var events []*SupervisionEvent
	for rows.Next() {
		var event SupervisionEvent
		err := rows.Scan(&event.ID, &event.Node, &event.Agent, &event.Event,
			&event.Reason, &event.Restarts, &event.Addr, &event.At)
		if err != nil {
			return nil, fmt.Errorf("scanning supervision event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating supervision events: %w", err)
	}

	return events, nil
}

// CountRestarts returns how many restart events the agent has accrued
func (s *SQLiteStore) CountRestarts(ctx context.Context, agent string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM supervision_events WHERE agent = ? AND event = ?
	`, agent, "restarted")

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting restarts: %w", err)
	}

	return count, nil
}

// Close releases the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
