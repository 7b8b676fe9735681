package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"schedule-tracker/pkg/task"
)

var (
	csvHeader       = []string{"id", "type", "name", "status", "description", "startTime", "duration", "epic"}
	legacyCSVHeader = []string{"id", "type", "name", "status", "description", "epic"}
)

// localLayout is the zone-less form older files carry; it reads as local time.
const localLayout = "2006-01-02T15:04:05.999999999"

// WriteCSV writes a header and one row per entity, in the given order.
func WriteCSV(w io.Writer, entities []task.Entity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range toRecords(entities) {
		row := []string{
			strconv.Itoa(r.ID),
			string(r.Kind),
			r.Name,
			string(r.Status),
			r.Description,
			formatTime(r.StartTime),
			formatDuration(r.Duration),
			"",
		}
		if r.Kind == task.KindSubtask {
			row[7] = strconv.Itoa(r.EpicID)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a snapshot written by WriteCSV, or by older versions that
// had no schedule columns. An empty input is an empty snapshot. Header
// mismatches and malformed rows are reported with their line number.
func ReadCSV(r io.Reader) ([]task.Entity, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: line 1: %w", task.ErrInvalidArgument, err)
	}
	legacy := false
	switch {
	case slices.Equal(header, csvHeader):
	case slices.Equal(header, legacyCSVHeader):
		legacy = true
	default:
		return nil, fmt.Errorf("%w: line 1: unexpected header %q", task.ErrInvalidArgument, strings.Join(header, ","))
	}

	var records []record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ParseError already names the line
			return nil, fmt.Errorf("%w: %w", task.ErrInvalidArgument, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) != len(header) {
			return nil, fmt.Errorf("%w: line %d: want %d fields, got %d", task.ErrInvalidArgument, line, len(header), len(row))
		}
		if legacy {
			row = []string{row[0], row[1], row[2], row[3], row[4], "", "", row[5]}
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return fromRecords(records)
}

func parseRow(row []string) (record, error) {
	var (
		r   record
		err error
	)
	if r.ID, err = strconv.Atoi(row[0]); err != nil {
		return r, fmt.Errorf("%w: bad id %q", task.ErrInvalidArgument, row[0])
	}
	if r.Kind, err = task.ParseKind(row[1]); err != nil {
		return r, err
	}
	r.Name = row[2]
	if r.Status, err = task.ParseStatus(row[3]); err != nil {
		return r, err
	}
	r.Description = row[4]
	if r.StartTime, err = parseTime(row[5]); err != nil {
		return r, err
	}
	if r.Duration, err = parseDuration(row[6]); err != nil {
		return r, err
	}
	switch {
	case r.Kind == task.KindSubtask:
		if r.EpicID, err = strconv.Atoi(row[7]); err != nil {
			return r, fmt.Errorf("%w: bad epic id %q", task.ErrInvalidArgument, row[7])
		}
	case row[7] != "":
		return r, fmt.Errorf("%w: %s row carries epic %q", task.ErrInvalidArgument, r.Kind, row[7])
	}
	return r, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad start time %q", task.ErrInvalidArgument, raw)
	}
	return t, nil
}

// formatDuration writes whole minutes as a plain integer, which is what
// older readers expect, and anything finer as a Go duration string.
func formatDuration(d time.Duration) string {
	if d%time.Minute == 0 {
		return strconv.FormatInt(int64(d/time.Minute), 10)
	}
	return d.String()
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: negative duration %q", task.ErrInvalidArgument, raw)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: bad duration %q", task.ErrInvalidArgument, raw)
	}
	return d, nil
}
