package task

import "fmt"

// Subtask is a task owned by exactly one epic.
type Subtask struct {
	Task
	epicID int
}

// NewSubtask creates a free subtask linked to epicID.
func NewSubtask(name, description string, status Status, epicID int) *Subtask {
	return &Subtask{Task: Task{name: name, description: description, status: status}, epicID: epicID}
}

func (s *Subtask) Kind() Kind  { return KindSubtask }
func (s *Subtask) EpicID() int { return s.epicID }

// SetID refuses an id equal to the owning epic's id.
func (s *Subtask) SetID(id int) error {
	if id != 0 && id == s.epicID {
		return fmt.Errorf("%w: subtask id must not equal epic id %d", ErrInvalidArgument, id)
	}
	return s.Task.SetID(id)
}

func (s *Subtask) SetEpicID(epicID int) error {
	if err := s.ensureMutable(); err != nil {
		return err
	}
	if s.id != 0 && epicID == s.id {
		return fmt.Errorf("%w: subtask id must not equal epic id %d", ErrInvalidArgument, epicID)
	}
	s.epicID = epicID
	return nil
}

// Clone returns a free copy of s.
func (s *Subtask) Clone() *Subtask {
	return &Subtask{Task: *s.Task.Clone(), epicID: s.epicID}
}
