package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"schedule-tracker/pkg/task"
)

// PgStore is a PostgreSQL-backed snapshot store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the entities table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tracker_entities (
			id           INTEGER PRIMARY KEY,
			kind         TEXT NOT NULL,
			name         TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'NEW',
			description  TEXT NOT NULL DEFAULT '',
			start_time   TIMESTAMPTZ,
			duration_ns  BIGINT NOT NULL DEFAULT 0,
			epic_id      INTEGER NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tracker_entities_epic ON tracker_entities(epic_id) WHERE epic_id != 0`)
	return err
}

// Load returns all stored entities ordered by id.
func (s *PgStore) Load(ctx context.Context) ([]task.Entity, error) {
	rows, err := s.pool.Query(ctx, `
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
			start    *time.Time
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
		if start != nil {
			r.StartTime = *start
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
func (s *PgStore) Save(ctx context.Context, entities []task.Entity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tracker_entities`); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range toRecords(entities) {
		var start *time.Time
		if !r.StartTime.IsZero() {
			start = &r.StartTime
		}
		batch.Queue(`
			INSERT INTO tracker_entities (id, kind, name, status, description, start_time, duration_ns, epic_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, string(r.Kind), r.Name, string(r.Status), r.Description, start, int64(r.Duration), r.EpicID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert entities: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}
