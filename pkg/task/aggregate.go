package task

import "time"

// Aggregate holds the fields of an epic that are derived from its subtasks.
type Aggregate struct {
	Status    Status
	StartTime time.Time
	Duration  time.Duration
	EndTime   time.Time
}

// ComputeAggregate derives epic fields from subtasks. Nil entries are
// skipped. Status is NEW for no subtasks or all NEW, DONE when all are DONE,
// and IN_PROGRESS for anything else. Duration is the sum of durations;
// start is the earliest set start and end the latest set end.
func ComputeAggregate(subtasks []*Subtask) Aggregate {
	var (
		agg    Aggregate
		status Status
	)
	for _, s := range subtasks {
		if s == nil {
			continue
		}
		switch {
		case status == "":
			status = s.status
		case status != s.status || status == StatusInProgress:
			status = StatusInProgress
		}

		agg.Duration += s.duration
		if s.startTime.IsZero() {
			continue
		}
		if agg.StartTime.IsZero() || s.startTime.Before(agg.StartTime) {
			agg.StartTime = s.startTime
		}
		if end := s.EndTime(); agg.EndTime.IsZero() || end.After(agg.EndTime) {
			agg.EndTime = end
		}
	}
	if status == "" {
		status = StatusNew
	}
	agg.Status = status
	return agg
}

// Overlaps reports whether two scheduled entities occupy intersecting
// half-open intervals [start, end). Entities without a start time or with
// a zero duration never overlap anything.
func Overlaps(a, b Entity) bool {
	ai, bi := a.Info(), b.Info()
	if !ai.Scheduled() || ai.duration == 0 || !bi.Scheduled() || bi.duration == 0 {
		return false
	}
	aStart, aEnd := ai.startTime, ai.startTime.Add(ai.duration)
	bStart, bEnd := bi.startTime, bi.startTime.Add(bi.duration)
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
