package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"schedule-tracker/pkg/task"
)

// FileBacked is a Memory whose every successful mutation is followed by a
// full snapshot write. Mutations and writes are serialized so the
// persisted state always matches some in-memory state.
type FileBacked struct {
	*Memory
	mu     sync.Mutex
	store  Persister
	logger *slog.Logger
}

// NewFileBacked loads the persisted state into a fresh Memory. Any load
// error is returned; the caller must not continue with a partial store.
func NewFileBacked(ctx context.Context, store Persister, logger *slog.Logger, opts ...Option) (*FileBacked, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FileBacked{Memory: NewMemory(opts...), store: store, logger: logger}

	entities, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := f.Memory.Restore(ctx, entities); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	st := f.Memory.Stats(ctx)
	logger.Info("snapshot loaded",
		"tasks", st.Tasks, "epics", st.Epics, "subtasks", st.Subtasks, "last_id", st.LastID)
	return f, nil
}

// save runs with f.mu held.
func (f *FileBacked) save(ctx context.Context) error {
	entities := f.Memory.Snapshot(ctx)
	if err := f.store.Save(ctx, entities); err != nil {
		f.logger.Error("snapshot save failed", "entities", len(entities), "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (f *FileBacked) mutate(ctx context.Context, op func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := op(); err != nil {
		return err
	}
	return f.save(ctx)
}

func (f *FileBacked) add(ctx context.Context, op func() (int, error)) (int, error) {
	var id int
	err := f.mutate(ctx, func() error {
		var err error
		id, err = op()
		return err
	})
	return id, err
}

func (f *FileBacked) AddTask(ctx context.Context, t *task.Task) (int, error) {
	return f.add(ctx, func() (int, error) { return f.Memory.AddTask(ctx, t) })
}

func (f *FileBacked) AddEpic(ctx context.Context, e *task.Epic) (int, error) {
	return f.add(ctx, func() (int, error) { return f.Memory.AddEpic(ctx, e) })
}

func (f *FileBacked) AddSubtask(ctx context.Context, s *task.Subtask) (int, error) {
	return f.add(ctx, func() (int, error) { return f.Memory.AddSubtask(ctx, s) })
}

func (f *FileBacked) UpdateTask(ctx context.Context, t *task.Task) error {
	return f.mutate(ctx, func() error { return f.Memory.UpdateTask(ctx, t) })
}

func (f *FileBacked) UpdateEpic(ctx context.Context, e *task.Epic) error {
	return f.mutate(ctx, func() error { return f.Memory.UpdateEpic(ctx, e) })
}

func (f *FileBacked) UpdateSubtask(ctx context.Context, s *task.Subtask) error {
	return f.mutate(ctx, func() error { return f.Memory.UpdateSubtask(ctx, s) })
}

func (f *FileBacked) DeleteTask(ctx context.Context, id int) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteTask(ctx, id) })
}

func (f *FileBacked) DeleteEpic(ctx context.Context, id int) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteEpic(ctx, id) })
}

func (f *FileBacked) DeleteSubtask(ctx context.Context, id int) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteSubtask(ctx, id) })
}

func (f *FileBacked) DeleteAllTasks(ctx context.Context) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteAllTasks(ctx) })
}

func (f *FileBacked) DeleteAllEpics(ctx context.Context) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteAllEpics(ctx) })
}

func (f *FileBacked) DeleteAllSubtasks(ctx context.Context) error {
	return f.mutate(ctx, func() error { return f.Memory.DeleteAllSubtasks(ctx) })
}

// Restore replaces the contents and writes them out.
func (f *FileBacked) Restore(ctx context.Context, entities []task.Entity) error {
	return f.mutate(ctx, func() error { return f.Memory.Restore(ctx, entities) })
}

// Flush writes the current state without changing it.
func (f *FileBacked) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(ctx)
}

var (
	_ Manager = (*Memory)(nil)
	_ Manager = (*FileBacked)(nil)
)
