package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"schedule-tracker/pkg/task"
)

// localLayout is the zone-less form older clients send; it reads as local time.
const localLayout = "2006-01-02T15:04:05.999999999"

// maxMinutes is the longest duration, in minutes, a time.Duration can hold.
const maxMinutes = math.MaxInt64 / int64(time.Minute)

// wireTime marshals as RFC 3339 and also accepts zone-less timestamps.
type wireTime struct{ time.Time }

func (t wireTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = v
		return nil
	}
	v, err := time.ParseInLocation(localLayout, raw, time.Local)
	if err != nil {
		return fmt.Errorf("startTime %q: want RFC 3339 or %s", raw, "2006-01-02T15:04:05")
	}
	t.Time = v
	return nil
}

// entityJSON is the wire form of every kind. Duration is in minutes.
type entityJSON struct {
	ID          int         `json:"id"`
	Type        task.Kind   `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      task.Status `json:"status"`
	StartTime   *wireTime   `json:"startTime,omitempty"`
	Duration    int64       `json:"duration"`
	EndTime     *wireTime   `json:"endTime,omitempty"`
	EpicID      int         `json:"epicId,omitempty"`
	SubtaskIDs  []int       `json:"subtaskIds,omitempty"`
}

func toJSON(e task.Entity) entityJSON {
	info := e.Info()
	out := entityJSON{
		ID:          e.ID(),
		Type:        e.Kind(),
		Name:        info.Name(),
		Description: info.Description(),
		Status:      info.Status(),
		Duration:    int64(info.Duration() / time.Minute),
	}
	if start := info.StartTime(); !start.IsZero() {
		out.StartTime = &wireTime{start}
	}
	if end := e.EndTime(); !end.IsZero() {
		out.EndTime = &wireTime{end}
	}
	switch v := e.(type) {
	case *task.Subtask:
		out.EpicID = v.EpicID()
	case *task.Epic:
		out.SubtaskIDs = v.SubtaskIDs()
	}
	return out
}

func listJSON[T task.Entity](items []T) []entityJSON {
	out := make([]entityJSON, 0, len(items))
	for _, it := range items {
		out = append(out, toJSON(it))
	}
	return out
}

// entityRequest is the body accepted by the POST endpoints. Server-derived
// fields (type, endTime, subtaskIds) are ignored.
type entityRequest struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	StartTime   *wireTime `json:"startTime"`
	Duration    int64     `json:"duration"`
	EpicID      int       `json:"epicId"`
}

func decodeRequest(body io.Reader) (entityRequest, error) {
	var req *entityRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return entityRequest{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if req == nil {
		return entityRequest{}, errors.New("request body is empty or null")
	}
	return *req, nil
}

// fill copies the request's common fields onto a free entity.
func (req entityRequest) fill(t *task.Task) error {
	if req.ID < 0 {
		return fmt.Errorf("%w: negative id %d", task.ErrInvalidArgument, req.ID)
	}
	if err := t.SetID(req.ID); err != nil {
		return err
	}
	status := task.StatusNew
	if strings.TrimSpace(req.Status) != "" {
		var err error
		if status, err = task.ParseStatus(req.Status); err != nil {
			return err
		}
	}
	if err := t.SetStatus(status); err != nil {
		return err
	}
	if req.StartTime != nil {
		if err := t.SetStartTime(req.StartTime.Time); err != nil {
			return err
		}
	}
	if req.Duration < 0 || req.Duration > maxMinutes {
		return fmt.Errorf("%w: duration %d minutes out of range", task.ErrInvalidArgument, req.Duration)
	}
	return t.SetDuration(time.Duration(req.Duration) * time.Minute)
}

func (req entityRequest) toTask() (*task.Task, error) {
	t := task.New(req.Name, req.Description, task.StatusNew)
	if err := req.fill(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (req entityRequest) toEpic() (*task.Epic, error) {
	e := task.NewEpic(req.Name, req.Description)
	if req.ID < 0 {
		return nil, fmt.Errorf("%w: negative id %d", task.ErrInvalidArgument, req.ID)
	}
	if err := e.SetID(req.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func (req entityRequest) toSubtask() (*task.Subtask, error) {
	s := task.NewSubtask(req.Name, req.Description, task.StatusNew, req.EpicID)
	if req.ID != 0 && req.ID == req.EpicID {
		return nil, fmt.Errorf("%w: subtask id must not equal epic id %d", task.ErrInvalidArgument, req.ID)
	}
	if err := req.fill(s.Info()); err != nil {
		return nil, err
	}
	return s, nil
}
