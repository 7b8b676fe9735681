// Package history remembers the most recently viewed tasks. Each id
// appears at most once; iteration runs from the oldest view to the newest.
// There is no capacity limit: entries leave only through Remove.
package history

import (
	"container/list"

	"schedule-tracker/pkg/task"
)

// Tracker is the contract the manager records views through.
type Tracker interface {
	// Add records e as the most recent view, replacing any earlier entry
	// with the same id. A nil entity is ignored.
	Add(e task.Entity)
	// Remove drops the entry for id, if any.
	Remove(id int)
	// List returns tracked entities, oldest view first.
	List() []task.Entity
	Len() int
}

// InMemory is a Tracker backed by a doubly linked list plus an id index,
// so add, remove and move-to-end are O(1). It is not safe for concurrent
// use; the manager serialises access under its own lock.
type InMemory struct {
	order *list.List
	index map[int]*list.Element
}

// NewInMemory creates an empty tracker.
func NewInMemory() *InMemory {
	return &InMemory{
		order: list.New(),
		index: make(map[int]*list.Element),
	}
}

func (h *InMemory) Add(e task.Entity) {
	if e == nil {
		return
	}
	if el, ok := h.index[e.ID()]; ok {
		h.order.Remove(el)
	}
	h.index[e.ID()] = h.order.PushBack(e)
}

func (h *InMemory) Remove(id int) {
	el, ok := h.index[id]
	if !ok {
		return
	}
	h.order.Remove(el)
	delete(h.index, id)
}

func (h *InMemory) List() []task.Entity {
	out := make([]task.Entity, 0, h.order.Len())
	for el := h.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(task.Entity))
	}
	return out
}

func (h *InMemory) Len() int {
	return h.order.Len()
}
