// Package manager owns every task, epic and subtask. It assigns ids,
// rejects overlapping schedules, keeps epic aggregates in step with their
// subtasks, maintains the start-time ordered view and records reads in
// the view history.
package manager

import (
	"context"
	"errors"

	"schedule-tracker/pkg/task"
)

// ErrPersist wraps a failed snapshot write. The in-memory change that
// triggered the write has already been applied when it is returned.
var ErrPersist = errors.New("persist snapshot")

// Manager is the contract the API layer works against.
type Manager interface {
	AddTask(ctx context.Context, t *task.Task) (int, error)
	AddEpic(ctx context.Context, e *task.Epic) (int, error)
	AddSubtask(ctx context.Context, s *task.Subtask) (int, error)

	UpdateTask(ctx context.Context, t *task.Task) error
	UpdateEpic(ctx context.Context, e *task.Epic) error
	UpdateSubtask(ctx context.Context, s *task.Subtask) error

	// Get* record the returned entity in the history.
	GetTask(ctx context.Context, id int) (*task.Task, error)
	GetEpic(ctx context.Context, id int) (*task.Epic, error)
	GetSubtask(ctx context.Context, id int) (*task.Subtask, error)

	Tasks(ctx context.Context) []*task.Task
	Epics(ctx context.Context) []*task.Epic
	Subtasks(ctx context.Context) []*task.Subtask
	EpicSubtasks(ctx context.Context, epicID int) ([]*task.Subtask, error)

	DeleteTask(ctx context.Context, id int) error
	DeleteEpic(ctx context.Context, id int) error
	DeleteSubtask(ctx context.Context, id int) error
	DeleteAllTasks(ctx context.Context) error
	DeleteAllEpics(ctx context.Context) error
	DeleteAllSubtasks(ctx context.Context) error

	// Prioritized returns scheduled tasks and subtasks ordered by start
	// time, then id.
	Prioritized(ctx context.Context) []task.Entity
	History(ctx context.Context) []task.Entity
	Stats(ctx context.Context) Stats
}

// Stats is a point-in-time count of the store's contents.
type Stats struct {
	Tasks       int `json:"tasks"`
	Epics       int `json:"epics"`
	Subtasks    int `json:"subtasks"`
	Prioritized int `json:"prioritized"`
	History     int `json:"history"`
	LastID      int `json:"last_id"`
}

// Persister reads and writes the whole store state.
type Persister interface {
	Load(ctx context.Context) ([]task.Entity, error)
	Save(ctx context.Context, entities []task.Entity) error
}
