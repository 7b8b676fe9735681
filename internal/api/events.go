package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, listJSON(s.store.History(r.Context())))
}

func (s *Server) handlePrioritized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, listJSON(s.store.Prioritized(r.Context())))
}

// handleEventStream pushes every store change as a Server-Sent Event until
// the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, 500, "change stream not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(200)
	flusher.Flush()

	ctx := r.Context()
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)
	s.trackStream(ctx, 1)
	defer s.trackStream(ctx, -1)

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case c, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				s.logger.Warn("encode change", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", c.ID, c.Type, data)
			flusher.Flush()
		}
	}
}
