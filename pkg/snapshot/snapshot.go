// Package snapshot persists the whole task store as one unit: every save
// replaces the previous state, every load returns it in id order.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"schedule-tracker/internal/db"
	"schedule-tracker/pkg/task"
)

// Store reads and writes a complete snapshot.
type Store interface {
	Load(ctx context.Context) ([]task.Entity, error)
	Save(ctx context.Context, entities []task.Entity) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config selects and locates a backend.
type Config struct {
	Backend string // memory, csv, postgres or sqlite
	Path    string // csv file or sqlite database
	DSN     string // postgres connection string
}

// Open returns the store for cfg.Backend. The memory backend has no store
// and returns nil.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return nil, nil
	case BackendCSV:
		if cfg.Path == "" {
			return nil, errors.New("csv backend needs a path")
		}
		return NewCSVStore(cfg.Path), nil
	case BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s := NewPgStore(pool)
		if err := s.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure snapshot table: %w", err)
		}
		return s, nil
	case BackendSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		s := NewSQLiteStore(conn)
		if err := s.EnsureTable(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("ensure snapshot table: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
