package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"schedule-tracker/internal/db"
	"schedule-tracker/pkg/manager"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("fresh store holds %d entities", len(empty))
	}

	src := sample(t)
	if err := store.Save(ctx, src.Snapshot(ctx)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// a second save replaces rather than appends
	if err := store.Save(ctx, src.Snapshot(ctx)); err != nil {
		t.Fatalf("save again: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dst := manager.NewMemory()
	if err := dst.Restore(ctx, loaded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	assertSameEntities(t, src.Snapshot(ctx), dst.Snapshot(ctx))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatal(err)
	}
	store := NewSQLiteStore(conn)
	defer store.Close()
	if err := store.EnsureTable(ctx); err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, store)
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("sqlite backend returned %T", s)
	}
}

func TestPgStore(t *testing.T) {
	dsn := os.Getenv("TRACKER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TRACKER_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	store := NewPgStore(pool)
	defer store.Close()
	if err := store.EnsureTable(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM tracker_entities`); err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, store)
}
