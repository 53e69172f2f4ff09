// Package sqlite persists run records and event journals in a single SQLite
// file, using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store implements ports.RunStore and ports.EventJournal on SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts or replaces the record.
func (s *Store) Save(ctx context.Context, r *domain.RunRecord) error {
	var finished sql.NullString
	if !r.FinishedAt.IsZero() {
		finished = sql.NullString{String: r.FinishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, order_mode, status, started_at, finished_at,
			events_planned, events_executed, events_suppressed, hook_failures, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			order_mode = excluded.order_mode,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			events_planned = excluded.events_planned,
			events_executed = excluded.events_executed,
			events_suppressed = excluded.events_suppressed,
			hook_failures = excluded.hook_failures,
			error = excluded.error`,
		r.ID, r.Name, r.OrderMode.String(), string(r.Status), r.StartedAt.UTC().Format(time.RFC3339Nano), finished,
		r.EventsPlanned, r.EventsExecuted, r.EventsSuppressed, r.HookFailures, r.Error,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// Load retrieves a record.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, order_mode, status, started_at, finished_at,
			events_planned, events_executed, events_suppressed, hook_failures, error
		FROM runs WHERE id = ?`, runID)

	var (
		r                  domain.RunRecord
		mode, status, from string
		finished           sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &mode, &status, &from, &finished,
		&r.EventsPlanned, &r.EventsExecuted, &r.EventsSuppressed, &r.HookFailures, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	if r.OrderMode, err = domain.ParseOrderMode(mode); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	r.Status = domain.RunStatus(status)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, from); err != nil {
		return nil, fmt.Errorf("load run %s: started_at: %w", runID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return nil, fmt.Errorf("load run %s: finished_at: %w", runID, err)
		}
	}
	return &r, nil
}

// Delete removes the record and its journal.
func (s *Store) Delete(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete journal %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return tx.Commit()
}

// List returns the stored run IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Append stores an executed event. Re-appending a sequence number replaces it.
func (s *Store) Append(ctx context.Context, runID string, seq int, event *domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO events (run_id, seq, payload) VALUES (?, ?, ?)`,
		runID, seq, string(payload))
	if err != nil {
		return fmt.Errorf("append event %s/%d: %w", runID, seq, err)
	}
	return nil
}

// Events returns the journal of runID in sequence order.
func (s *Store) Events(ctx context.Context, runID string) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM events WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", runID, err)
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e domain.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
