// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"net/http"

	"syncwatch/internal/events"
)

// handleResults handles GET /api/results.
// Returns the current snapshot: generation, publish time and rows.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Store().Current())
}

// handleQueryStatus handles GET /api/query.
func (s *Server) handleQueryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status())
}

// handleStartQuery handles POST /api/query/start.
// Starting an active query is a no-op and still returns 200.
func (s *Server) handleStartQuery(w http.ResponseWriter, r *http.Request) {
	wasActive := s.tracker.Status().Active

	if err := s.tracker.Start(); err != nil {
		s.logger.Error("failed to start query", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start query: "+err.Error())
		return
	}

	if !wasActive {
		s.logger.Info("query started via web")
		if s.notifyTUI != nil {
			s.notifyTUI(events.QueryStartedMsg{})
		}
	}

	writeJSON(w, http.StatusOK, s.tracker.Status())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
