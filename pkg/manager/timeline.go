package manager

import (
	"cmp"
	"slices"

	"schedule-tracker/pkg/task"
)

// timeline keeps scheduled entities sorted by start time, then id.
type timeline struct {
	items []task.Entity
}

func compareEntries(a, b task.Entity) int {
	if c := a.Info().StartTime().Compare(b.Info().StartTime()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

func (tl *timeline) insert(e task.Entity) {
	if e == nil || !e.Info().Scheduled() {
		return
	}
	i, found := slices.BinarySearchFunc(tl.items, e, compareEntries)
	if found {
		tl.items[i] = e
		return
	}
	tl.items = slices.Insert(tl.items, i, e)
}

// remove drops e, located by its own start time and id.
func (tl *timeline) remove(e task.Entity) {
	if e == nil || !e.Info().Scheduled() {
		return
	}
	if i, found := slices.BinarySearchFunc(tl.items, e, compareEntries); found {
		tl.items = slices.Delete(tl.items, i, i+1)
	}
}

// conflict returns the first stored entity whose interval overlaps e,
// ignoring any entry with e's id. The scan stops at the first entry that
// starts at or after e ends, since nothing later can overlap.
func (tl *timeline) conflict(e task.Entity) task.Entity {
	info := e.Info()
	if !info.Scheduled() || info.Duration() == 0 {
		return nil
	}
	end := info.EndTime()
	for _, cur := range tl.items {
		if !cur.Info().StartTime().Before(end) {
			break
		}
		if cur.ID() == e.ID() {
			continue
		}
		if task.Overlaps(cur, e) {
			return cur
		}
	}
	return nil
}

func (tl *timeline) list() []task.Entity {
	return slices.Clone(tl.items)
}

func (tl *timeline) size() int {
	return len(tl.items)
}

func (tl *timeline) reset() {
	tl.items = nil
}
