package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/types"
)

// fileBuilder writes fixed bytes to <dir>/<platform_id>/<raw_artifact_name>
func fileBuilder(dir string, content []byte) Builder {
	return BuilderFunc(func(_ context.Context, p types.PlatformDescriptor) (string, error) {
		path := filepath.Join(dir, p.PlatformID, p.RawArtifactName)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", err
		}
		return path, os.WriteFile(path, content, 0755)
	})
}

func TestTask_Run_Success(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	staging := t.TempDir()
	content := []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0xff}

	task := NewTask(fileBuilder(t.TempDir(), content), store, staging, logging.Discard())
	job := types.NewBuildJob(types.DefaultPlatforms()[1])

	require.NoError(t, task.Run(ctx, job))

	assert.Equal(t, types.JobSucceeded, job.Status)
	assert.Equal(t, filepath.Join(staging, "windows-amd64", "boot-windows-amd64.exe"), job.ProducedArtifactPath)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.FinishedAt.IsZero())
	assert.Empty(t, job.Error)

	// Renaming preserves bytes exactly
	stored, err := store.Get(ctx, "boot-windows-amd64.exe")
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	staged, err := os.ReadFile(job.ProducedArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, content, staged)
}

func TestTask_Run_NoStagingUsesRawPath(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	buildDir := t.TempDir()

	task := NewTask(fileBuilder(buildDir, []byte("ELF")), store, "", logging.Discard())
	job := types.NewBuildJob(types.DefaultPlatforms()[0])

	require.NoError(t, task.Run(ctx, job))
	assert.Equal(t, filepath.Join(buildDir, "linux-amd64", "boot"), job.ProducedArtifactPath)

	stored, err := store.Get(ctx, "boot-linux-amd64")
	require.NoError(t, err)
	assert.Equal(t, []byte("ELF"), stored)
}

func TestTask_Run_BuilderError(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	builder := BuilderFunc(func(context.Context, types.PlatformDescriptor) (string, error) {
		return "", errors.New("toolchain missing")
	})

	task := NewTask(builder, store, t.TempDir(), logging.Discard())
	job := types.NewBuildJob(types.DefaultPlatforms()[2])

	err := task.Run(ctx, job)
	var bf *BuildFailure
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, "macos-amd64", bf.PlatformID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.Error, "toolchain missing")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "failed job must not write to the store")
}

func TestTask_Run_BuildFailurePassesThrough(t *testing.T) {
	original := &BuildFailure{PlatformID: "linux-amd64", Message: "build command failed", ExitCode: 101}
	builder := BuilderFunc(func(context.Context, types.PlatformDescriptor) (string, error) {
		return "", original
	})

	task := NewTask(builder, artifact.NewMemoryStore(), "", logging.Discard())
	err := task.Run(context.Background(), types.NewBuildJob(types.DefaultPlatforms()[0]))
	assert.Same(t, original, err)
}

func TestTask_Run_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := artifact.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "boot-linux-amd64", []byte("already here")))

	task := NewTask(fileBuilder(t.TempDir(), []byte("ELF")), store, "", logging.Discard())
	job := types.NewBuildJob(types.DefaultPlatforms()[0])

	err := task.Run(ctx, job)
	var dup *artifact.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, types.JobFailed, job.Status)
}

func TestTask_Run_MissingRawFile(t *testing.T) {
	builder := BuilderFunc(func(context.Context, types.PlatformDescriptor) (string, error) {
		return filepath.Join(t.TempDir(), "nothing-here"), nil
	})

	task := NewTask(builder, artifact.NewMemoryStore(), t.TempDir(), logging.Discard())
	job := types.NewBuildJob(types.DefaultPlatforms()[0])

	err := task.Run(context.Background(), job)
	var bf *BuildFailure
	require.ErrorAs(t, err, &bf)
	assert.Contains(t, bf.Message, "failed to rename boot to boot-linux-amd64")
	assert.Equal(t, types.JobFailed, job.Status)
}
