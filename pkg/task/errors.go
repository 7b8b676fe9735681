package task

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a referenced task, epic or subtask does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument covers bad ids, self references, malformed rows
	// and scheduling conflicts.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when a managed entity is mutated outside
	// the manager.
	ErrInvalidState = errors.New("invalid state")
	// ErrTimeConflict is the scheduling flavour of ErrInvalidArgument.
	ErrTimeConflict = fmt.Errorf("%w: time conflict", ErrInvalidArgument)
)
