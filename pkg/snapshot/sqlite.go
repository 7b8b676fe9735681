package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"schedule-tracker/pkg/task"
)

// SQLiteStore keeps the snapshot in a sqlite table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database, typically from db.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureTable creates the entities table if it doesn't exist.
func (s *SQLiteStore) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tracker_entities (
			id           INTEGER PRIMARY KEY,
			kind         TEXT NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'NEW',
			description  TEXT NOT NULL DEFAULT '',
			start_time   TEXT NOT NULL DEFAULT '',
			duration_ns  INTEGER NOT NULL DEFAULT 0,
			epic_id      INTEGER NOT NULL DEFAULT 0
		)`)
	return err
}

// Load returns all stored entities ordered by id.
func (s *SQLiteStore) Load(ctx context.Context) ([]task.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, status, description, start_time, duration_ns, epic_id
		FROM tracker_entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var (
			r        record
			kind     string
			status   string
			start    string
			duration int64
		)
		if err := rows.Scan(&r.ID, &kind, &r.Name, &status, &r.Description, &start, &duration, &r.EpicID); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if r.Kind, err = task.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("row id %d: %w", r.ID, err)
		}
		if r.Status, err = task.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("row id %d: %w", r.ID, err)
		}
		if r.StartTime, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("row id %d: %w", r.ID, err)
		}
		r.Duration = time.Duration(duration)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	return fromRecords(records)
}

// Save replaces the table contents in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, entities []task.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tracker_entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracker_entities (id, kind, name, status, description, start_time, duration_ns, epic_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range toRecords(entities) {
		if _, err := stmt.ExecContext(ctx, r.ID, string(r.Kind), r.Name, string(r.Status), r.Description,
			formatTime(r.StartTime), int64(r.Duration), r.EpicID); err != nil {
			return fmt.Errorf("insert entity %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
