package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobPending.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, JobSucceeded.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

func TestRunState_IsTerminal(t *testing.T) {
	for _, s := range []RunState{RunIdle, RunRunning, RunAllJobsDone, RunPublishing} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, RunCompleted.IsTerminal())
	assert.True(t, RunFailed.IsTerminal())
}

func TestBuildJob_Duration(t *testing.T) {
	job := NewBuildJob(DefaultPlatforms()[0])
	assert.Equal(t, JobPending, job.Status)
	assert.Zero(t, job.Duration())

	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job.StartedAt = start
	job.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, job.Duration())
}

func TestNewArtifact_Checksum(t *testing.T) {
	a := NewArtifact("boot-linux-amd64", []byte("hello"))
	assert.Equal(t, int64(5), a.Size)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", a.SHA256)
}

func TestRunSummary_FailedJobs(t *testing.T) {
	s := RunSummary{Jobs: []BuildJob{
		{Descriptor: PlatformDescriptor{PlatformID: "a"}, Status: JobSucceeded},
		{Descriptor: PlatformDescriptor{PlatformID: "b"}, Status: JobFailed},
	}}
	failed := s.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Descriptor.PlatformID)
}

func TestRunSummary_JSONOmitsArtifactBytes(t *testing.T) {
	s := RunSummary{
		RunID:     "run-1",
		State:     RunCompleted,
		Artifacts: []Artifact{NewArtifact("boot-linux-amd64", []byte("secret-bytes"))},
		Release:   &ReleaseRecord{Tag: "v1.0.0"},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-bytes")
	assert.Contains(t, string(data), `"state":"completed"`)
	assert.Contains(t, string(data), `"tag":"v1.0.0"`)
}

func TestReleaseRecord_Attach(t *testing.T) {
	r := &ReleaseRecord{Tag: "v2.0.0"}
	r.Attach("boot-linux-amd64")
	r.Attach("boot-macos-amd64")
	assert.Equal(t, []string{"boot-linux-amd64", "boot-macos-amd64"}, r.AttachedArtifacts)
}
