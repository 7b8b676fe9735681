package api

import (
	"net/http"

	"schedule-tracker/pkg/task"
)

func (s *Server) handleSubtaskList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, listJSON(s.store.Subtasks(r.Context())))
}

func (s *Server) handleSubtaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	st, err := s.store.GetSubtask(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, 200, toJSON(st))
}

func (s *Server) handleSubtaskSave(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r.Body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	st, err := req.toSubtask()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	if req.ID == 0 {
		id, err := s.store.AddSubtask(ctx, st)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.countMutation(r, task.KindSubtask, "create")
		writeJSON(w, 201, map[string]int{"id": id})
		return
	}
	if err := s.store.UpdateSubtask(ctx, st); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindSubtask, "update")
	writeJSON(w, 201, map[string]int{"id": st.ID()})
}

func (s *Server) handleSubtaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSubtask(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindSubtask, "delete")
	writeJSON(w, 201, map[string]int{"id": id})
}

func (s *Server) handleSubtaskDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAllSubtasks(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindSubtask, "clear")
	writeJSON(w, 201, map[string]string{"status": "cleared"})
}
