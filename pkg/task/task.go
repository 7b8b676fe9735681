package task

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// ParseStatus converts the upper-case status name into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, raw)
	}
	return s, nil
}

// Kind discriminates the three entity variants.
type Kind string

const (
	KindTask    Kind = "TASK"
	KindEpic    Kind = "EPIC"
	KindSubtask Kind = "SUBTASK"
)

// ParseKind converts the upper-case kind name into a Kind.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindTask, KindEpic, KindSubtask:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown task type %q", ErrInvalidArgument, raw)
}

// Entity is the closed set of things the manager stores: *Task, *Epic and
// *Subtask. Callers switch on the concrete type once, at the boundary.
type Entity interface {
	Kind() Kind
	ID() int
	// Info exposes the common fields shared by every variant.
	Info() *Task
	// EndTime is start plus duration for tasks and subtasks, and the latest
	// subtask end for epics. Zero when unset.
	EndTime() time.Time
	entity()
}

// Task is a standalone unit of work. A Task starts out free: its setters
// succeed until the manager registers it, after which it is managed and
// every setter fails with ErrInvalidState.
type Task struct {
	id          int
	name        string
	description string
	status      Status
	startTime   time.Time
	duration    time.Duration
	managed     bool
}

// New creates a free task with no id and no schedule.
func New(name, description string, status Status) *Task {
	return &Task{name: name, description: description, status: status}
}

func (t *Task) entity() {}

func (t *Task) Kind() Kind              { return KindTask }
func (t *Task) Info() *Task             { return t }
func (t *Task) ID() int                 { return t.id }
func (t *Task) Name() string            { return t.name }
func (t *Task) Description() string     { return t.description }
func (t *Task) Status() Status          { return t.status }
func (t *Task) StartTime() time.Time    { return t.startTime }
func (t *Task) Duration() time.Duration { return t.duration }
func (t *Task) Managed() bool           { return t.managed }
func (t *Task) Scheduled() bool         { return !t.startTime.IsZero() }

// EndTime returns start plus duration, or the zero time when the task has
// no start time.
func (t *Task) EndTime() time.Time {
	if t.startTime.IsZero() {
		return time.Time{}
	}
	return t.startTime.Add(t.duration)
}

// MarkManaged locks the task's fields. Only the manager calls it.
func (t *Task) MarkManaged() {
	t.managed = true
}

func (t *Task) ensureMutable() error {
	if t.managed {
		return fmt.Errorf("%w: task %d is managed; fields are immutable outside the manager", ErrInvalidState, t.id)
	}
	return nil
}

func (t *Task) SetID(id int) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("%w: negative id %d", ErrInvalidArgument, id)
	}
	t.id = id
	return nil
}

func (t *Task) SetName(name string) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	t.name = name
	return nil
}

func (t *Task) SetDescription(description string) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	t.description = description
	return nil
}

func (t *Task) SetStatus(status Status) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}
	t.status = status
	return nil
}

// SetStartTime sets the scheduled start. The zero time clears it.
func (t *Task) SetStartTime(start time.Time) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	t.startTime = start
	return nil
}

func (t *Task) SetDuration(d time.Duration) error {
	if err := t.ensureMutable(); err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidArgument, d)
	}
	t.duration = d
	return nil
}

// Clone returns a free copy of t.
func (t *Task) Clone() *Task {
	cp := *t
	cp.managed = false
	return &cp
}

// SameID reports whether two entities carry the same identity. Equality
// of entities is by id only.
func SameID(a, b Entity) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}
