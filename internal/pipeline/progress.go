package pipeline

import "github.com/jonathan/boot-release/internal/types"

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	RunID    string          `json:"run_id"`
	State    types.RunState  `json:"state"`
	Platform string          `json:"platform,omitempty"`
	Status   types.JobStatus `json:"status,omitempty"`
	Message  string          `json:"message"`
}

// ProgressCallback is called when run progress occurs. It may be called
// from several goroutines at once while builds are running.
type ProgressCallback func(event ProgressEvent)
