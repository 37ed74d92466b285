package types

import "time"

// RunState is a state of the pipeline controller
type RunState string

// Controller states. Completed and Failed are terminal.
const (
	RunIdle        RunState = "idle"
	RunRunning     RunState = "running"
	RunAllJobsDone RunState = "all_jobs_done"
	RunPublishing  RunState = "publishing"
	RunCompleted   RunState = "completed"
	RunFailed      RunState = "failed"
)

// IsTerminal reports whether the run can make no further transitions
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Failure stages reported in RunSummary.FailureStage
const (
	StageConfig  = "config"
	StageBuild   = "build"
	StagePublish = "publish"
)

// UploadFailure describes one artifact that could not be attached to the release
type UploadFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// RunSummary is the user-visible outcome of a pipeline run
type RunSummary struct {
	RunID          string          `json:"run_id"`
	Reference      string          `json:"reference"`
	Tag            string          `json:"tag,omitempty"`
	Skipped        bool            `json:"skipped"`
	State          RunState        `json:"state"`
	FailureStage   string          `json:"failure_stage,omitempty"`
	Error          string          `json:"error,omitempty"`
	Jobs           []BuildJob      `json:"jobs"`
	Release        *ReleaseRecord  `json:"release,omitempty"`
	Artifacts      []Artifact      `json:"artifacts,omitempty"`
	UploadFailures []UploadFailure `json:"upload_failures,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at,omitempty"`
}

// FailedJobs returns the jobs whose status is failed
func (s *RunSummary) FailedJobs() []BuildJob {
	var failed []BuildJob
	for _, j := range s.Jobs {
		if j.Status == JobFailed {
			failed = append(failed, j)
		}
	}
	return failed
}
