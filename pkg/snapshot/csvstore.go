package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"schedule-tracker/pkg/task"
)

// CSVStore keeps the snapshot in a single CSV file.
type CSVStore struct {
	path string
}

// NewCSVStore creates a CSVStore for path. The file need not exist yet.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the file the store reads and writes.
func (s *CSVStore) Path() string { return s.path }

// Load reads the file. A missing file is an empty snapshot.
func (s *CSVStore) Load(_ context.Context) ([]task.Entity, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	entities, err := ReadCSV(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return entities, nil
}

// Save writes to a temp file next to the target and renames it into place,
// so readers never see a half-written snapshot.
func (s *CSVStore) Save(_ context.Context, entities []task.Entity) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := WriteCSV(w, entities); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *CSVStore) Close() error { return nil }
