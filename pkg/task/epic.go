package task

import (
	"slices"
	"time"
)

// Epic groups subtasks. Its status, start, duration and end are derived
// from the subtasks by the manager and are never meaningful on a free epic.
type Epic struct {
	Task
	subtaskIDs []int
	endTime    time.Time
}

// NewEpic creates a free epic with no subtasks.
func NewEpic(name, description string) *Epic {
	return &Epic{Task: Task{name: name, description: description, status: StatusNew}}
}

func (e *Epic) Kind() Kind { return KindEpic }

// EndTime is the latest end among the epic's scheduled subtasks.
func (e *Epic) EndTime() time.Time { return e.endTime }

// SubtaskIDs returns a copy of the ordered subtask id list.
func (e *Epic) SubtaskIDs() []int {
	return slices.Clone(e.subtaskIDs)
}

// HasSubtask reports whether id is linked to the epic.
func (e *Epic) HasSubtask(id int) bool {
	return slices.Contains(e.subtaskIDs, id)
}

// Rebuild derives a new managed epic carrying e's identity, name and
// description, the given subtask list and the aggregate fields. The
// receiver is left untouched so references handed out earlier stay valid.
// Duplicate ids and the epic's own id are dropped from the list.
func (e *Epic) Rebuild(subtaskIDs []int, agg Aggregate) *Epic {
	ids := make([]int, 0, len(subtaskIDs))
	for _, id := range subtaskIDs {
		if id == e.id || slices.Contains(ids, id) {
			continue
		}
		ids = append(ids, id)
	}
	return &Epic{
		Task: Task{
			id:          e.id,
			name:        e.name,
			description: e.description,
			status:      agg.Status,
			startTime:   agg.StartTime,
			duration:    agg.Duration,
			managed:     true,
		},
		subtaskIDs: ids,
		endTime:    agg.EndTime,
	}
}

// Clone returns a free deep copy of e.
func (e *Epic) Clone() *Epic {
	return &Epic{
		Task:       *e.Task.Clone(),
		subtaskIDs: slices.Clone(e.subtaskIDs),
		endTime:    e.endTime,
	}
}
