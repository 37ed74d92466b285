package server

import (
	"net/http"

	"github.com/google/uuid"
)

// handleListRuns returns the runs held in memory, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.runs.list()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run summary, falling back to History for runs no
// longer held in memory
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	if summary, ok := s.runs.get(runID.String()); ok {
		s.jsonResponse(w, http.StatusOK, summary)
		return
	}
	if s.cfg.History == nil {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	summary, err := s.cfg.History.GetRunSummary(r.Context(), runID)
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusNotFound {
			s.errorResponse(w, status, "Run not found")
			return
		}
		s.log.InFunc("handleGetRun").WithRun(runID.String()).WithError(err).Warn("History lookup failed")
		s.errorResponse(w, status, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

// handleRunEvents streams progress of the active run via SSE. A finished run
// gets a single complete event.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID format")
		return
	}
	id := runID.String()

	events, cancel, live := s.runs.subscribe(id)
	defer cancel()

	if !live {
		summary, ok := s.runs.get(id)
		if !ok {
			s.errorResponse(w, http.StatusNotFound, "Run not found")
			return
		}
		sse, err := NewSSEWriter(w)
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		sse.WriteComplete(summary)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				summary, _ := s.runs.get(id)
				sse.WriteComplete(summary)
				return
			}
			if err := sse.WriteEvent("progress", e); err != nil {
				return
			}
		}
	}
}
