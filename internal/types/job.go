package types

import "time"

// JobStatus is the lifecycle state of a build job
type JobStatus string

const (
	// JobPending indicates the job has been created but not started
	JobPending JobStatus = "pending"
	// JobRunning indicates the external build tool is executing
	JobRunning JobStatus = "running"
	// JobSucceeded indicates the artifact was produced and stored
	JobSucceeded JobStatus = "succeeded"
	// JobFailed indicates the build or the hand-off failed
	JobFailed JobStatus = "failed"
)

// IsTerminal reports whether the status is succeeded or failed
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// BuildJob is one build instance for a platform descriptor
type BuildJob struct {
	Descriptor           PlatformDescriptor `json:"descriptor"`
	Status               JobStatus          `json:"status"`
	ProducedArtifactPath string             `json:"produced_artifact_path,omitempty"`
	Error                string             `json:"error,omitempty"`
	StartedAt            time.Time          `json:"started_at,omitempty"`
	FinishedAt           time.Time          `json:"finished_at,omitempty"`
}

// NewBuildJob creates a pending job for the descriptor
func NewBuildJob(d PlatformDescriptor) *BuildJob {
	return &BuildJob{Descriptor: d, Status: JobPending}
}

// Duration returns how long the job ran, or zero if it has not finished
func (j *BuildJob) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
