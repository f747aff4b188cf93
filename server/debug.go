package server

import "net/http"

// handleDebugStats exposes hub counters and process gauges for operators.
// It is unauthenticated like the rest of the API; keep it off public ingress.
func (s *Server) handleDebugStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot())
}
