// pattern: Imperative Shell

package web

import (
	"fmt"
	"net/http"
)

// handleEvents is the SSE endpoint. It sends a "connected" event on open,
// then a "refresh" event carrying the new generation each time the result
// store is replaced. Replacements that happen while a client is slow are
// coalesced into one event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	st := s.tracker.Store()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	fmt.Fprintf(w, "event: connected\ndata: %d\n\n", st.Current().Generation())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			fmt.Fprintf(w, "event: refresh\ndata: %d\n\n", st.Current().Generation())
			flusher.Flush()
		}
	}
}
