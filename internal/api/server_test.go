package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schedule-tracker/internal/telemetry"
	"schedule-tracker/pkg/events"
	"schedule-tracker/pkg/manager"
	"schedule-tracker/pkg/task"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	p, err := telemetry.Init(context.Background(), telemetry.Config{})
	if err != nil {
		t.Fatal(err)
	}
	metrics, err := telemetry.NewMetrics(p.Meter)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(manager.NewMemory(manager.WithBus(bus)), bus, logger, metrics), bus
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createdID(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	if w.Code != 201 {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	return decode[map[string]int](t, w)["id"]
}

func TestTaskLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	id := createdID(t, do(t, s, "POST", "/tasks",
		`{"name":"write","description":"report","status":"IN_PROGRESS","startTime":"2024-03-01T09:00:00Z","duration":60}`))
	if id != 1 {
		t.Fatalf("id = %d", id)
	}

	w := do(t, s, "GET", "/tasks/1", "")
	if w.Code != 200 {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decode[entityJSON](t, w)
	if got.Name != "write" || got.Status != task.StatusInProgress || got.Duration != 60 || got.Type != task.KindTask {
		t.Fatalf("unexpected task: %+v", got)
	}
	if got.EndTime == nil || !got.EndTime.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("end time = %v", got.EndTime)
	}

	// update through POST with an id
	if w := do(t, s, "POST", "/tasks", `{"id":1,"name":"write v2","status":"DONE"}`); w.Code != 201 {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	list := decode[[]entityJSON](t, do(t, s, "GET", "/tasks", ""))
	if len(list) != 1 || list[0].Name != "write v2" || list[0].StartTime != nil {
		t.Fatalf("list after update: %+v", list)
	}

	if w := do(t, s, "DELETE", "/tasks/1", ""); w.Code != 201 {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, s, "GET", "/tasks/1", ""); w.Code != 404 {
		t.Fatalf("get after delete = %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	createdID(t, do(t, s, "POST", "/tasks", `{"name":"T1","startTime":"2024-03-01T09:00:00","duration":60}`))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"conflict", "POST", "/tasks", `{"name":"T2","startTime":"2024-03-01T09:30:00","duration":60}`, 406},
		{"bad json", "POST", "/tasks", `{"name":`, 400},
		{"bad time", "POST", "/tasks", `{"name":"x","startTime":"tomorrow"}`, 400},
		{"bad status", "POST", "/tasks", `{"name":"x","status":"OPEN"}`, 400},
		{"negative duration", "POST", "/tasks", `{"name":"x","duration":-1}`, 400},
		{"update epic that is a task", "POST", "/epics", `{"id":1,"name":"e"}`, 404},
		{"update missing", "POST", "/tasks", `{"id":42,"name":"x"}`, 404},
		{"missing epic", "POST", "/subtasks", `{"name":"s","epicId":9}`, 404},
		{"subtask is its epic", "POST", "/subtasks", `{"id":7,"name":"s","epicId":7}`, 400},
		{"null task body", "POST", "/tasks", `null`, 400},
		{"null epic body", "POST", "/epics", ` null `, 400},
		{"null subtask body", "POST", "/subtasks", `null`, 400},
		{"empty body", "POST", "/tasks", "", 400},
		{"duration overflows", "POST", "/tasks", `{"name":"x","duration":153722868}`, 400},
		{"non-numeric path id", "GET", "/tasks/abc", "", 404},
		{"zero path id", "DELETE", "/epics/0", "", 404},
		{"unknown task", "GET", "/tasks/99", "", 404},
		{"unknown epic subtasks", "GET", "/epics/99/subtasks", "", 404},
		{"delete unknown", "DELETE", "/subtasks/99", "", 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want >= 400 {
				if msg := decode[map[string]string](t, w)["error"]; msg == "" {
					t.Fatal("error body missing")
				}
			}
		})
	}

	// rejected bodies must not have created anything
	if got := decode[[]entityJSON](t, do(t, s, "GET", "/tasks", "")); len(got) != 1 {
		t.Fatalf("tasks = %d, want 1", len(got))
	}
	if got := decode[[]entityJSON](t, do(t, s, "GET", "/epics", "")); len(got) != 0 {
		t.Fatalf("epics = %d, want 0", len(got))
	}
}

func TestEpicWithSubtasks(t *testing.T) {
	s, _ := newTestServer(t)

	epicID := createdID(t, do(t, s, "POST", "/epics", `{"name":"release","status":"DONE"}`))
	createdID(t, do(t, s, "POST", "/subtasks",
		`{"name":"S1","status":"NEW","startTime":"2024-03-01T09:00:00Z","duration":30,"epicId":1}`))
	createdID(t, do(t, s, "POST", "/subtasks",
		`{"name":"S2","status":"IN_PROGRESS","startTime":"2024-03-01T10:00:00Z","duration":30,"epicId":1}`))

	e := decode[entityJSON](t, do(t, s, "GET", "/epics/1", ""))
	if e.ID != epicID || e.Status != task.StatusInProgress || e.Duration != 60 {
		t.Fatalf("epic = %+v", e)
	}
	if e.StartTime == nil || e.StartTime.Hour() != 9 || e.EndTime == nil || e.EndTime.Hour() != 10 || e.EndTime.Minute() != 30 {
		t.Fatalf("epic schedule = %v .. %v", e.StartTime, e.EndTime)
	}
	if len(e.SubtaskIDs) != 2 {
		t.Fatalf("subtask ids = %v", e.SubtaskIDs)
	}

	subs := decode[[]entityJSON](t, do(t, s, "GET", "/epics/1/subtasks", ""))
	if len(subs) != 2 || subs[0].Name != "S1" || subs[1].EpicID != 1 {
		t.Fatalf("epic subtasks = %+v", subs)
	}

	prio := decode[[]entityJSON](t, do(t, s, "GET", "/prioritized", ""))
	if len(prio) != 2 || prio[0].Name != "S1" {
		t.Fatalf("prioritized = %+v", prio)
	}

	if w := do(t, s, "DELETE", "/epics/1", ""); w.Code != 201 {
		t.Fatalf("delete epic = %d", w.Code)
	}
	if subs := decode[[]entityJSON](t, do(t, s, "GET", "/subtasks", "")); len(subs) != 0 {
		t.Fatalf("subtasks survived epic delete: %+v", subs)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	createdID(t, do(t, s, "POST", "/tasks", `{"name":"a"}`))
	createdID(t, do(t, s, "POST", "/epics", `{"name":"b"}`))

	do(t, s, "GET", "/tasks/1", "")
	do(t, s, "GET", "/epics/2", "")
	do(t, s, "GET", "/tasks/1", "")
	do(t, s, "GET", "/tasks", "")

	hist := decode[[]entityJSON](t, do(t, s, "GET", "/history", ""))
	if len(hist) != 2 || hist[0].ID != 2 || hist[1].ID != 1 {
		t.Fatalf("history = %+v", hist)
	}
}

func TestBulkDelete(t *testing.T) {
	s, _ := newTestServer(t)
	createdID(t, do(t, s, "POST", "/tasks", `{"name":"a"}`))
	createdID(t, do(t, s, "POST", "/tasks", `{"name":"b"}`))

	if w := do(t, s, "DELETE", "/tasks", ""); w.Code != 201 {
		t.Fatalf("bulk delete = %d", w.Code)
	}
	if list := decode[[]entityJSON](t, do(t, s, "GET", "/tasks", "")); len(list) != 0 {
		t.Fatalf("tasks left: %+v", list)
	}
	st := decode[map[string]json.RawMessage](t, do(t, s, "GET", "/status", ""))
	var stats manager.Stats
	if err := json.Unmarshal(st["store"], &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Tasks != 0 || stats.LastID != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, "GET", "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing generated request id")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

// failingStore persists nothing and fails every save.
type failingStore struct{}

func (failingStore) Load(context.Context) ([]task.Entity, error) { return nil, nil }
func (failingStore) Save(context.Context, []task.Entity) error  { return errors.New("disk full") }

func TestPersistFailureIs500(t *testing.T) {
	ctx := context.Background()
	fb, err := manager.NewFileBacked(ctx, failingStore{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	s := New(fb, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	if w := do(t, s, "POST", "/tasks", `{"name":"a"}`); w.Code != 500 {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if w := do(t, s, "GET", "/events/stream", ""); w.Code != 500 {
		t.Fatalf("stream without bus = %d", w.Code)
	}
}

func TestEventStream(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// the handler subscribes after writing headers; wait for it
	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	post, err := http.Post(ts.URL+"/tasks", "application/json", strings.NewReader(`{"name":"streamed"}`))
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var c events.Change
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &c); err != nil {
			t.Fatal(err)
		}
		if c.Type != events.TypeCreated || c.Kind != task.KindTask || c.EntityID != 1 {
			t.Fatalf("change = %+v", c)
		}
		return
	}
	t.Fatalf("stream ended without a change: %v", sc.Err())
}
