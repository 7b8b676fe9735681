package snapshot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"schedule-tracker/pkg/manager"
	"schedule-tracker/pkg/task"
)

var morning = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// sample builds a store with one of each kind plus an unscheduled task
// whose name needs quoting.
func sample(t *testing.T) *manager.Memory {
	t.Helper()
	ctx := context.Background()
	m := manager.NewMemory()

	tk := task.New("plan, then write", "line one\nline two", task.StatusDone)
	if _, err := m.AddTask(ctx, tk); err != nil {
		t.Fatal(err)
	}
	epicID, err := m.AddEpic(ctx, task.NewEpic("release", "q1"))
	if err != nil {
		t.Fatal(err)
	}
	s := task.NewSubtask("build", "", task.StatusInProgress, epicID)
	_ = s.SetStartTime(morning)
	_ = s.SetDuration(90 * time.Minute)
	if _, err := m.AddSubtask(ctx, s); err != nil {
		t.Fatal(err)
	}
	odd := task.New("short", "", task.StatusNew)
	_ = odd.SetStartTime(morning.Add(3 * time.Hour))
	_ = odd.SetDuration(90 * time.Second)
	if _, err := m.AddTask(ctx, odd); err != nil {
		t.Fatal(err)
	}
	return m
}

func assertSameEntities(t *testing.T, want, got []task.Entity) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("entity count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		w, g := toRecord(want[i]), toRecord(got[i])
		if !w.StartTime.Equal(g.StartTime) {
			t.Errorf("entity %d start = %v, want %v", w.ID, g.StartTime, w.StartTime)
		}
		w.StartTime, g.StartTime = time.Time{}, time.Time{}
		if w != g {
			t.Errorf("entity %d:\n got %+v\nwant %+v", w.ID, g, w)
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := sample(t)

	var buf bytes.Buffer
	if err := WriteCSV(&buf, src.Snapshot(ctx)); err != nil {
		t.Fatal(err)
	}
	loaded, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	dst := manager.NewMemory()
	if err := dst.Restore(ctx, loaded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	assertSameEntities(t, src.Snapshot(ctx), dst.Snapshot(ctx))

	id, err := dst.AddTask(ctx, task.New("next", "", task.StatusNew))
	if err != nil {
		t.Fatal(err)
	}
	if id != 5 {
		t.Fatalf("next id = %d, want 5", id)
	}
}

func TestWriteCSVFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(t).Snapshot(context.Background())); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "id,type,name,status,description,startTime,duration,epic" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `1,TASK,"plan, then write",DONE,"line one`) {
		t.Errorf("quoted row = %q", lines[1])
	}
	if !strings.Contains(buf.String(), "3,SUBTASK,build,IN_PROGRESS,,2024-03-01T09:00:00Z,90,2") {
		t.Errorf("subtask row missing in:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), ",1m30s,") {
		t.Errorf("sub-minute duration not kept in:\n%s", buf.String())
	}
}

func TestReadLegacyCSV(t *testing.T) {
	in := "id,type,name,status,description,epic\n" +
		"1,EPIC,old epic,NEW,,\n" +
		"2,SUBTASK,old sub,DONE,d,1\n" +
		"3,TASK,old task,IN_PROGRESS,,\n"
	entities, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 3 {
		t.Fatalf("got %d entities", len(entities))
	}
	s, ok := entities[1].(*task.Subtask)
	if !ok || s.EpicID() != 1 || s.Status() != task.StatusDone || s.Scheduled() {
		t.Fatalf("legacy subtask = %+v", entities[1])
	}
}

func TestReadCSVLocalTimestamps(t *testing.T) {
	in := "id,type,name,status,description,startTime,duration,epic\n" +
		"1,TASK,t,NEW,,2024-03-01T09:00:00,30,\n"
	entities, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	if got := entities[0].Info().StartTime(); !got.Equal(want) {
		t.Fatalf("start = %v, want %v", got, want)
	}
	if d := entities[0].Info().Duration(); d != 30*time.Minute {
		t.Fatalf("duration = %v", d)
	}
}

func TestReadCSVErrors(t *testing.T) {
	const header = "id,type,name,status,description,startTime,duration,epic\n"
	tests := []struct {
		name string
		in   string
		line string
	}{
		{"bad header", "id,kind,name\n", "line 1"},
		{"bad id", header + "x,TASK,a,NEW,,,,\n", "line 2"},
		{"bad type", header + "1,STORY,a,NEW,,,,\n", "line 2"},
		{"bad status", header + "1,TASK,a,OPEN,,,,\n", "line 2"},
		{"bad time", header + "1,TASK,a,NEW,,yesterday,,\n", "line 2"},
		{"negative duration", header + "1,TASK,a,NEW,,,-5,\n", "line 2"},
		{"missing epic", header + "1,TASK,a,NEW,,,,\n2,SUBTASK,b,NEW,,,,\n", "line 3"},
		{"short row", header + "1,TASK,a\n", "line 2"},
		{"subtask is its epic", header + "4,SUBTASK,b,NEW,,,,4\n", ""},
		{"task with epic", header + "1,TASK,a,NEW,,,,3\n", "line 2"},
		{"epic with epic", header + "1,EPIC,a,NEW,,,,\n2,EPIC,b,NEW,,,,1\n", "line 3"},
		{"legacy task with epic", "id,type,name,status,description,epic\n1,TASK,a,NEW,,2\n", "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			if !errors.Is(err, task.ErrInvalidArgument) {
				t.Fatalf("expected invalid argument, got %v", err)
			}
			if tt.line != "" && !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q does not name %s", err, tt.line)
			}
		})
	}
}

func TestReadCSVEmpty(t *testing.T) {
	entities, err := ReadCSV(strings.NewReader(""))
	if err != nil || len(entities) != 0 {
		t.Fatalf("empty input: %v, %d entities", err, len(entities))
	}
}

func TestCSVStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "tasks.csv")
	store := NewCSVStore(path)

	got, err := store.Load(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file: %v, %d entities", err, len(got))
	}

	src := sample(t)
	if err := store.Save(ctx, src.Snapshot(ctx)); err != nil {
		t.Fatalf("save: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	dst := manager.NewMemory()
	if err := dst.Restore(ctx, loaded); err != nil {
		t.Fatal(err)
	}
	assertSameEntities(t, src.Snapshot(ctx), dst.Snapshot(ctx))
}

func TestCSVStoreWithFileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.csv")

	fb, err := manager.NewFileBacked(ctx, NewCSVStore(path), nil)
	if err != nil {
		t.Fatal(err)
	}
	epicID, err := fb.AddEpic(ctx, task.NewEpic("e", ""))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fb.AddSubtask(ctx, task.NewSubtask("s", "", task.StatusDone, epicID)); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "\n"); n != 3 {
		t.Fatalf("file has %d lines, want header plus 2 rows:\n%s", n, raw)
	}

	again, err := manager.NewFileBacked(ctx, NewCSVStore(path), nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := again.GetEpic(ctx, epicID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status() != task.StatusDone {
		t.Fatalf("reloaded epic status = %s", e.Status())
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Backend: BackendMemory})
	if err != nil || s != nil {
		t.Fatalf("memory backend: %v, %v", s, err)
	}
	s, err = Open(ctx, Config{Backend: BackendCSV, Path: filepath.Join(t.TempDir(), "x.csv")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*CSVStore); !ok {
		t.Fatalf("csv backend returned %T", s)
	}
	if _, err := Open(ctx, Config{Backend: BackendCSV}); err == nil {
		t.Fatal("csv backend without path should fail")
	}
	if _, err := Open(ctx, Config{Backend: "redis"}); err == nil {
		t.Fatal("unknown backend should fail")
	}
}
