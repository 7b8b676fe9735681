package api

import (
	"net/http"

	"schedule-tracker/pkg/task"
)

func (s *Server) handleEpicList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, listJSON(s.store.Epics(r.Context())))
}

func (s *Server) handleEpicGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.store.GetEpic(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, 200, toJSON(e))
}

func (s *Server) handleEpicSubtasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	subs, err := s.store.EpicSubtasks(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, 200, listJSON(subs))
}

// handleEpicSave creates or renames an epic. Status, schedule and subtask
// list in the body are ignored; the store derives them.
func (s *Server) handleEpicSave(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r.Body)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	e, err := req.toEpic()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := r.Context()
	if req.ID == 0 {
		id, err := s.store.AddEpic(ctx, e)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		s.countMutation(r, task.KindEpic, "create")
		writeJSON(w, 201, map[string]int{"id": id})
		return
	}
	if err := s.store.UpdateEpic(ctx, e); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindEpic, "update")
	writeJSON(w, 201, map[string]int{"id": e.ID()})
}

func (s *Server) handleEpicDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteEpic(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindEpic, "delete")
	writeJSON(w, 201, map[string]int{"id": id})
}

func (s *Server) handleEpicDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAllEpics(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.countMutation(r, task.KindEpic, "clear")
	writeJSON(w, 201, map[string]string{"status": "cleared"})
}
