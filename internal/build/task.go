package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/types"
)

// Task is the platform build task: build, rename, store.
// A Task holds no per-job state, so one Task may run many jobs concurrently.
type Task struct {
	builder    Builder
	store      artifact.Store
	stagingDir string
	now        func() time.Time
	log        logging.ContextLogger
}

// NewTask creates a task. When stagingDir is set, each renamed artifact is
// also kept at <stagingDir>/<platform_id>/<published_asset_name>.
func NewTask(builder Builder, store artifact.Store, stagingDir string, logger *logrus.Logger) *Task {
	return &Task{
		builder:    builder,
		store:      store,
		stagingDir: stagingDir,
		now:        time.Now,
		log:        logging.NewContextLogger(logger, "build").InStruct("Task"),
	}
}

// Run executes the job to a terminal status. The job transitions
// pending -> running -> succeeded|failed exactly once and is never retried.
// The returned error is always a *BuildFailure.
func (t *Task) Run(ctx context.Context, job *types.BuildJob) error {
	platform := job.Descriptor
	log := t.log.InFunc("Run").WithPlatform(platform.PlatformID)

	job.Status = types.JobRunning
	job.StartedAt = t.now()
	log.Info("Build started")

	rawPath, err := t.builder.Build(ctx, platform)
	if err != nil {
		return t.fail(job, log, asBuildFailure(platform.PlatformID, "build tool failed", err))
	}

	publishedPath := rawPath
	if t.stagingDir != "" {
		publishedPath = filepath.Join(t.stagingDir, platform.PlatformID, platform.PublishedAssetName)
		if err := copyFile(rawPath, publishedPath); err != nil {
			return t.fail(job, log, &BuildFailure{
				PlatformID: platform.PlatformID,
				Message:    fmt.Sprintf("failed to rename %s to %s", platform.RawArtifactName, platform.PublishedAssetName),
				Cause:      err,
			})
		}
	}
	job.ProducedArtifactPath = publishedPath

	data, err := os.ReadFile(publishedPath)
	if err != nil {
		return t.fail(job, log, &BuildFailure{PlatformID: platform.PlatformID, Message: "failed to read artifact", Cause: err})
	}

	if err := t.store.Put(ctx, platform.PublishedAssetName, data); err != nil {
		return t.fail(job, log, &BuildFailure{
			PlatformID: platform.PlatformID,
			Message:    fmt.Sprintf("failed to store artifact %s", platform.PublishedAssetName),
			Cause:      err,
		})
	}

	job.Status = types.JobSucceeded
	job.FinishedAt = t.now()
	log.WithFields(logrus.Fields{
		"artifact": platform.PublishedAssetName,
		"bytes":    len(data),
		"duration": job.Duration().String(),
	}).Info("Build succeeded")
	return nil
}

func (t *Task) fail(job *types.BuildJob, log logging.ContextLogger, err *BuildFailure) error {
	job.Status = types.JobFailed
	job.FinishedAt = t.now()
	job.Error = err.Error()
	log.WithError(err).Error("Build failed")
	return err
}

func asBuildFailure(platformID, message string, err error) *BuildFailure {
	var bf *BuildFailure
	if errors.As(err, &bf) {
		return bf
	}
	return &BuildFailure{PlatformID: platformID, Message: message, ExitCode: -1, Cause: err}
}

// copyFile copies src to dst byte for byte, creating dst's directory
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
