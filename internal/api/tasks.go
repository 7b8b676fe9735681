package api

import (
	"net/http"

	"schedule-tracker/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, listJSON(s.store.Tasks(r.Context())))
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.store.GetTask(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, 200, toJSON(t))
}

// handleTaskSave creates the task when the body has no id and updates the
// stored one otherwise.
func (s *Server) handleTaskSave(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r.Body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	t, err := req.toTask()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	if req.ID == 0 {
		id, err := s.store.AddTask(ctx, t)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.countMutation(r, task.KindTask, "create")
		writeJSON(w, 201, map[string]int{"id": id})
		return
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindTask, "update")
	writeJSON(w, 201, map[string]int{"id": t.ID()})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindTask, "delete")
	writeJSON(w, 201, map[string]int{"id": id})
}

func (s *Server) handleTaskDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAllTasks(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindTask, "clear")
	writeJSON(w, 201, map[string]string{"status": "cleared"})
}
