package snapshot

import (
	"fmt"
	"time"

	"schedule-tracker/pkg/task"
)

// record is the flat row form shared by every backend.
type record struct {
	ID          int
	Kind        task.Kind
	Name        string
	Status      task.Status
	Description string
	StartTime   time.Time // zero when unscheduled
	Duration    time.Duration
	EpicID      int // subtasks only
}

func toRecord(e task.Entity) record {
	info := e.Info()
	r := record{
		ID:          e.ID(),
		Kind:        e.Kind(),
		Name:        info.Name(),
		Status:      info.Status(),
		Description: info.Description(),
		StartTime:   info.StartTime(),
		Duration:    info.Duration(),
	}
	if s, ok := e.(*task.Subtask); ok {
		r.EpicID = s.EpicID()
	}
	return r
}

// entity builds a free entity. Epic status and schedule are derived by the
// manager on restore, so they are not carried over.
func (r record) entity() (task.Entity, error) {
	if r.ID <= 0 {
		return nil, fmt.Errorf("%w: id must be positive, got %d", task.ErrInvalidArgument, r.ID)
	}
	var (
		e    task.Entity
		info *task.Task
	)
	switch r.Kind {
	case task.KindTask:
		t := task.New(r.Name, r.Description, task.StatusNew)
		if err := t.SetID(r.ID); err != nil {
			return nil, err
		}
		e, info = t, t
	case task.KindEpic:
		ep := task.NewEpic(r.Name, r.Description)
		if err := ep.SetID(r.ID); err != nil {
			return nil, err
		}
		return ep, nil
	case task.KindSubtask:
		if r.EpicID <= 0 {
			return nil, fmt.Errorf("%w: subtask %d has no epic", task.ErrInvalidArgument, r.ID)
		}
		s := task.NewSubtask(r.Name, r.Description, task.StatusNew, r.EpicID)
		if err := s.SetID(r.ID); err != nil {
			return nil, err
		}
		e, info = s, s.Info()
	default:
		return nil, fmt.Errorf("%w: unknown type %q", task.ErrInvalidArgument, r.Kind)
	}

	if err := info.SetStatus(r.Status); err != nil {
		return nil, err
	}
	if err := info.SetStartTime(r.StartTime); err != nil {
		return nil, err
	}
	if err := info.SetDuration(r.Duration); err != nil {
		return nil, err
	}
	return e, nil
}

func toRecords(entities []task.Entity) []record {
	out := make([]record, 0, len(entities))
	for _, e := range entities {
		if e != nil {
			out = append(out, toRecord(e))
		}
	}
	return out
}

func fromRecords(records []record) ([]task.Entity, error) {
	out := make([]task.Entity, 0, len(records))
	for _, r := range records {
		e, err := r.entity()
		if err != nil {
			return nil, fmt.Errorf("row id %d: %w", r.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}
