package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/boot-release/internal/types"
)

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// completion is the payload of the final event of a stream
type completion struct {
	RunID string         `json:"run_id"`
	State types.RunState `json:"state"`
	Error string         `json:"error,omitempty"`
}

// WriteComplete sends the terminal state of a run
func (s *SSEWriter) WriteComplete(summary types.RunSummary) {
	s.WriteEvent("complete", completion{ //nolint:errcheck
		RunID: summary.RunID,
		State: summary.State,
		Error: summary.Error,
	})
}
