package manager

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"schedule-tracker/pkg/events"
	"schedule-tracker/pkg/history"
	"schedule-tracker/pkg/task"
)

// Memory is the in-memory Manager. One mutex is held for the whole of
// every public call; nothing inside does I/O.
type Memory struct {
	mu       sync.Mutex
	tasks    map[int]*task.Task
	epics    map[int]*task.Epic
	subtasks map[int]*task.Subtask
	schedule timeline
	lastID   int
	history  history.Tracker
	bus      *events.Bus
}

// Option configures a Memory.
type Option func(*Memory)

// WithHistory replaces the default in-memory history tracker.
func WithHistory(h history.Tracker) Option {
	return func(m *Memory) { m.history = h }
}

// WithBus publishes a change for every successful mutation.
func WithBus(b *events.Bus) Option {
	return func(m *Memory) { m.bus = b }
}

// NewMemory creates an empty store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		tasks:    make(map[int]*task.Task),
		epics:    make(map[int]*task.Epic),
		subtasks: make(map[int]*task.Subtask),
		history:  history.NewInMemory(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) AddTask(_ context.Context, t *task.Task) (int, error) {
	if t == nil {
		return 0, fmt.Errorf("%w: nil task", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ensureFree(t); err != nil {
		return 0, err
	}
	id, err := m.assignID(t.ID())
	if err != nil {
		return 0, err
	}
	if err := m.checkSchedule(t); err != nil {
		return 0, err
	}
	m.register(t, id)
	m.tasks[id] = t
	m.schedule.insert(t)
	m.publish(events.TypeCreated, task.KindTask, id)
	return id, nil
}

func (m *Memory) AddEpic(_ context.Context, e *task.Epic) (int, error) {
	if e == nil {
		return 0, fmt.Errorf("%w: nil epic", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ensureFree(e); err != nil {
		return 0, err
	}
	id, err := m.assignID(e.ID())
	if err != nil {
		return 0, err
	}
	m.register(e, id)
	m.refreshEpic(e, nil)
	m.publish(events.TypeCreated, task.KindEpic, id)
	return id, nil
}

func (m *Memory) AddSubtask(_ context.Context, s *task.Subtask) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("%w: nil subtask", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ensureFree(s); err != nil {
		return 0, err
	}
	epic, ok := m.epics[s.EpicID()]
	if !ok {
		return 0, notFound(task.KindEpic, s.EpicID())
	}
	id, err := m.assignID(s.ID())
	if err != nil {
		return 0, err
	}
	if id == s.EpicID() {
		return 0, fmt.Errorf("%w: subtask id must not equal epic id %d", task.ErrInvalidArgument, id)
	}
	if err := m.checkSchedule(s); err != nil {
		return 0, err
	}
	m.register(s, id)
	m.subtasks[id] = s
	m.schedule.insert(s)
	m.refreshEpic(epic, append(epic.SubtaskIDs(), id))
	m.publish(events.TypeCreated, task.KindSubtask, id)
	return id, nil
}

func (m *Memory) UpdateTask(_ context.Context, t *task.Task) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tasks[t.ID()]
	if !ok {
		return notFound(task.KindTask, t.ID())
	}
	if t != old {
		if err := ensureFree(t); err != nil {
			return err
		}
	}
	if err := m.checkSchedule(t); err != nil {
		return err
	}
	m.schedule.remove(old)
	t.MarkManaged()
	m.tasks[t.ID()] = t
	m.schedule.insert(t)
	m.publish(events.TypeUpdated, task.KindTask, t.ID())
	return nil
}

// UpdateEpic replaces the epic's name and description. The subtask list
// and the derived fields stay under the manager's control.
func (m *Memory) UpdateEpic(_ context.Context, e *task.Epic) error {
	if e == nil {
		return fmt.Errorf("%w: nil epic", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.epics[e.ID()]
	if !ok {
		return notFound(task.KindEpic, e.ID())
	}
	if e != old {
		if err := ensureFree(e); err != nil {
			return err
		}
	}
	m.refreshEpic(e, old.SubtaskIDs())
	m.publish(events.TypeUpdated, task.KindEpic, e.ID())
	return nil
}

func (m *Memory) UpdateSubtask(_ context.Context, s *task.Subtask) error {
	if s == nil {
		return fmt.Errorf("%w: nil subtask", task.ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := s.ID()
	saved, ok := m.subtasks[id]
	if !ok {
		return notFound(task.KindSubtask, id)
	}
	if s != saved {
		if err := ensureFree(s); err != nil {
			return err
		}
	}
	newEpic, ok := m.epics[s.EpicID()]
	if !ok {
		return notFound(task.KindEpic, s.EpicID())
	}
	if id == s.EpicID() {
		return fmt.Errorf("%w: subtask id must not equal epic id %d", task.ErrInvalidArgument, id)
	}
	if err := m.checkSchedule(s); err != nil {
		return err
	}

	m.schedule.remove(saved)
	s.MarkManaged()
	m.subtasks[id] = s
	m.schedule.insert(s)

	if oldEpicID := saved.EpicID(); oldEpicID != s.EpicID() {
		if oldEpic, ok := m.epics[oldEpicID]; ok {
			m.refreshEpic(oldEpic, without(oldEpic.SubtaskIDs(), id))
		}
		m.refreshEpic(newEpic, append(newEpic.SubtaskIDs(), id))
	} else {
		m.refreshEpic(newEpic, newEpic.SubtaskIDs())
	}
	m.publish(events.TypeUpdated, task.KindSubtask, id)
	return nil
}

func (m *Memory) GetTask(_ context.Context, id int) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, notFound(task.KindTask, id)
	}
	m.history.Add(t)
	return t, nil
}

func (m *Memory) GetEpic(_ context.Context, id int) (*task.Epic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.epics[id]
	if !ok {
		return nil, notFound(task.KindEpic, id)
	}
	m.history.Add(e)
	return e, nil
}

func (m *Memory) GetSubtask(_ context.Context, id int) (*task.Subtask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subtasks[id]
	if !ok {
		return nil, notFound(task.KindSubtask, id)
	}
	m.history.Add(s)
	return s, nil
}

func (m *Memory) Tasks(_ context.Context) []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return byID(m.tasks)
}

func (m *Memory) Epics(_ context.Context) []*task.Epic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return byID(m.epics)
}

func (m *Memory) Subtasks(_ context.Context) []*task.Subtask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return byID(m.subtasks)
}

// EpicSubtasks returns the epic's subtasks in list order. It does not
// touch the history.
func (m *Memory) EpicSubtasks(_ context.Context, epicID int) ([]*task.Subtask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	epic, ok := m.epics[epicID]
	if !ok {
		return nil, notFound(task.KindEpic, epicID)
	}
	return m.resolve(epic.SubtaskIDs()), nil
}

func (m *Memory) DeleteTask(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return notFound(task.KindTask, id)
	}
	delete(m.tasks, id)
	m.schedule.remove(t)
	m.history.Remove(id)
	m.publish(events.TypeDeleted, task.KindTask, id)
	return nil
}

// DeleteEpic removes the epic together with every subtask it owns.
func (m *Memory) DeleteEpic(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	epic, ok := m.epics[id]
	if !ok {
		return notFound(task.KindEpic, id)
	}
	delete(m.epics, id)
	for _, sid := range epic.SubtaskIDs() {
		m.dropSubtask(sid)
	}
	m.history.Remove(id)
	m.publish(events.TypeDeleted, task.KindEpic, id)
	return nil
}

func (m *Memory) DeleteSubtask(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subtasks[id]
	if !ok {
		return notFound(task.KindSubtask, id)
	}
	m.dropSubtask(id)
	if epic, ok := m.epics[s.EpicID()]; ok {
		m.refreshEpic(epic, without(epic.SubtaskIDs(), id))
	}
	m.publish(events.TypeDeleted, task.KindSubtask, id)
	return nil
}

func (m *Memory) DeleteAllTasks(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		m.schedule.remove(t)
		m.history.Remove(id)
	}
	clear(m.tasks)
	m.publish(events.TypeCleared, task.KindTask, 0)
	return nil
}

// DeleteAllEpics also deletes every subtask, since epics own them.
func (m *Memory) DeleteAllEpics(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.epics {
		m.history.Remove(id)
	}
	clear(m.epics)
	for id := range m.subtasks {
		m.dropSubtask(id)
	}
	m.publish(events.TypeCleared, task.KindEpic, 0)
	return nil
}

func (m *Memory) DeleteAllSubtasks(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.subtasks {
		m.dropSubtask(id)
	}
	for _, epic := range m.epics {
		m.refreshEpic(epic, nil)
	}
	m.publish(events.TypeCleared, task.KindSubtask, 0)
	return nil
}

func (m *Memory) Prioritized(_ context.Context) []task.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedule.list()
}

func (m *Memory) History(_ context.Context) []task.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.List()
}

func (m *Memory) Stats(_ context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Tasks:       len(m.tasks),
		Epics:       len(m.epics),
		Subtasks:    len(m.subtasks),
		Prioritized: m.schedule.size(),
		History:     m.history.Len(),
		LastID:      m.lastID,
	}
}

// Snapshot returns every entity ordered by id.
func (m *Memory) Snapshot(_ context.Context) []task.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Memory) snapshot() []task.Entity {
	out := make([]task.Entity, 0, len(m.tasks)+len(m.epics)+len(m.subtasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	for _, e := range m.epics {
		out = append(out, e)
	}
	for _, s := range m.subtasks {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b task.Entity) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Restore replaces the store contents with persisted entities. Tasks and
// epics are registered first, then subtasks in id order, so a subtask
// never precedes its epic. The id generator ends at the largest id seen
// and the history starts empty. On any error the store is left empty.
func (m *Memory) Restore(_ context.Context, entities []task.Entity) error {
	staged := NewMemory()
	err := staged.load(entities)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.history.List() {
		m.history.Remove(e.ID())
	}
	if err != nil {
		m.tasks = make(map[int]*task.Task)
		m.epics = make(map[int]*task.Epic)
		m.subtasks = make(map[int]*task.Subtask)
		m.schedule.reset()
		m.lastID = 0
		return err
	}
	m.tasks, m.epics, m.subtasks = staged.tasks, staged.epics, staged.subtasks
	m.schedule = staged.schedule
	m.lastID = staged.lastID
	return nil
}

// load fills an empty, unshared Memory. No lock is taken.
func (m *Memory) load(entities []task.Entity) error {
	sorted := slices.Clone(entities)
	for i, e := range sorted {
		if e == nil {
			return fmt.Errorf("%w: nil entity at position %d", task.ErrInvalidArgument, i)
		}
		if e.ID() <= 0 {
			return fmt.Errorf("%w: %s %q has no id", task.ErrInvalidArgument, e.Kind(), e.Info().Name())
		}
		if err := ensureFree(e); err != nil {
			return err
		}
	}
	slices.SortStableFunc(sorted, func(a, b task.Entity) int {
		// subtasks after everything else, each group by id
		as, bs := a.Kind() == task.KindSubtask, b.Kind() == task.KindSubtask
		if as != bs {
			if as {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.ID(), b.ID())
	})

	links := make(map[int][]int)
	for _, e := range sorted {
		id := e.ID()
		if m.exists(id) {
			return fmt.Errorf("%w: duplicate id %d", task.ErrInvalidArgument, id)
		}
		switch v := e.(type) {
		case *task.Task:
			if err := m.checkSchedule(v); err != nil {
				return err
			}
			m.register(v, id)
			m.tasks[id] = v
			m.schedule.insert(v)
		case *task.Epic:
			m.register(v, id)
			m.epics[id] = v
		case *task.Subtask:
			if _, ok := m.epics[v.EpicID()]; !ok {
				return fmt.Errorf("subtask %d: %w", id, notFound(task.KindEpic, v.EpicID()))
			}
			if id == v.EpicID() {
				return fmt.Errorf("%w: subtask id must not equal epic id %d", task.ErrInvalidArgument, id)
			}
			if err := m.checkSchedule(v); err != nil {
				return err
			}
			m.register(v, id)
			m.subtasks[id] = v
			m.schedule.insert(v)
			links[v.EpicID()] = append(links[v.EpicID()], id)
		}
	}
	for id, epic := range m.epics {
		m.refreshEpic(epic, links[id])
	}
	return nil
}

// assignID validates a caller-supplied id, or picks the next one when id
// is zero. The generator only moves in register, once every check passed.
func (m *Memory) assignID(id int) (int, error) {
	if id == 0 {
		return m.lastID + 1, nil
	}
	if id <= m.lastID {
		return 0, fmt.Errorf("%w: predefined id %d must be greater than current sequence %d", task.ErrInvalidArgument, id, m.lastID)
	}
	if m.exists(id) {
		return 0, fmt.Errorf("%w: id %d already exists", task.ErrInvalidArgument, id)
	}
	return id, nil
}

func (m *Memory) exists(id int) bool {
	_, t := m.tasks[id]
	_, e := m.epics[id]
	_, s := m.subtasks[id]
	return t || e || s
}

// register stamps the id, locks the entity and advances the generator.
func (m *Memory) register(e task.Entity, id int) {
	info := e.Info()
	if info.ID() != id {
		// free entities accept any non-negative id
		_ = info.SetID(id)
	}
	info.MarkManaged()
	if id > m.lastID {
		m.lastID = id
	}
}

func (m *Memory) checkSchedule(e task.Entity) error {
	if other := m.schedule.conflict(e); other != nil {
		return fmt.Errorf("%w: %s %q overlaps %s %d", task.ErrTimeConflict,
			e.Kind(), e.Info().Name(), other.Kind(), other.ID())
	}
	return nil
}

// refreshEpic stores a fresh epic built from src's identity, the given
// subtask list and aggregates recomputed from the subtasks that resolve.
func (m *Memory) refreshEpic(src *task.Epic, subtaskIDs []int) {
	next := src.Rebuild(subtaskIDs, task.ComputeAggregate(m.resolve(subtaskIDs)))
	m.epics[next.ID()] = next
}

func (m *Memory) resolve(ids []int) []*task.Subtask {
	out := make([]*task.Subtask, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.subtasks[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// dropSubtask removes a subtask from the map, the schedule and the
// history, leaving its epic's list to the caller.
func (m *Memory) dropSubtask(id int) {
	s, ok := m.subtasks[id]
	if !ok {
		return
	}
	delete(m.subtasks, id)
	m.schedule.remove(s)
	m.history.Remove(id)
}

func (m *Memory) publish(typ events.Type, kind task.Kind, id int) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.NewChange(typ, kind, id))
}

func ensureFree(e task.Entity) error {
	if e.Info().Managed() {
		return fmt.Errorf("%w: %s %d is already managed; pass a clone", task.ErrInvalidState, e.Kind(), e.ID())
	}
	return nil
}

func notFound(kind task.Kind, id int) error {
	return fmt.Errorf("%w: %s %d", task.ErrNotFound, kind, id)
}

func without(ids []int, id int) []int {
	return slices.DeleteFunc(ids, func(v int) bool { return v == id })
}

func byID[T task.Entity](m map[int]T) []T {
	out := make([]T, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[id])
	}
	return out
}
