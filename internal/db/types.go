package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id has no ledger entry
var ErrRunNotFound = errors.New("run not found")

// Run represents a release run record
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Reference    string     `json:"reference"`
	Tag          string     `json:"tag"`
	Repository   string     `json:"repository"`
	CommitSHA    string     `json:"commit_sha"`
	State        string     `json:"state"`
	FailureStage *string    `json:"failure_stage,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Job represents one platform build of a run
type Job struct {
	RunID              uuid.UUID  `json:"run_id"`
	PlatformID         string     `json:"platform_id"`
	Target             string     `json:"target"`
	RawArtifactName    string     `json:"raw_artifact_name"`
	PublishedAssetName string     `json:"published_asset_name"`
	Status             string     `json:"status"`
	ArtifactPath       *string    `json:"artifact_path,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
}

// Release represents the release record created by a run
type Release struct {
	RunID             uuid.UUID `json:"run_id"`
	ReleaseID         int64     `json:"release_id"`
	Tag               string    `json:"tag"`
	Title             string    `json:"title"`
	URL               string    `json:"url"`
	Draft             bool      `json:"draft"`
	Prerelease        bool      `json:"prerelease"`
	AttachedArtifacts []string  `json:"attached_artifacts"`
	CreatedAt         time.Time `json:"created_at"`
}

// nullString maps "" to NULL
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullTime maps the zero time to NULL
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
