package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/config"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/release"
	"github.com/jonathan/boot-release/internal/types"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	return &cfg
}

func TestPipelineFlags_ApplyOnlyChanged(t *testing.T) {
	cfg := &config.Config{
		Trigger: config.TriggerConfig{Pattern: "release-*"},
		Store:   config.StoreConfig{Kind: artifact.KindDisk, Dir: "/var/artifacts"},
	}
	flags := &pipelineFlags{pattern: "v*", store: "memory", logFormat: "json", verbose: true}

	flags.apply(cfg, changedOf("log-format", "verbose"))

	assert.Equal(t, "release-*", cfg.Trigger.Pattern, "unchanged flags keep config values")
	assert.Equal(t, artifact.KindDisk, cfg.Store.Kind)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.Verbose)
}

func TestPipelineFlags_DryRun(t *testing.T) {
	cfg := &config.Config{Publisher: config.PublisherConfig{Kind: config.PublisherGitHub}}
	(&pipelineFlags{dryRun: true}).apply(cfg, changedOf())

	assert.Equal(t, config.PublisherDir, cfg.Publisher.Kind)
	assert.Equal(t, defaultDryRunDir, cfg.Publisher.Dir)

	cfg = &config.Config{Publisher: config.PublisherConfig{Dir: "/tmp/mirror"}}
	(&pipelineFlags{dryRun: true}).apply(cfg, changedOf())
	assert.Equal(t, "/tmp/mirror", cfg.Publisher.Dir)
}

func TestLoadConfig_FlagsOverrideFileAndEnvFillsGaps(t *testing.T) {
	isolateEnv(t)
	t.Setenv("GITHUB_TOKEN", "ghp_env")

	path := filepath.Join(t.TempDir(), "release.yml")
	require.NoError(t, os.WriteFile(path, []byte("trigger:\n  pattern: \"release-*\"\n"), 0644))

	cfg, err := loadConfig(&pipelineFlags{configPath: path, pattern: "v*"}, changedOf("pattern"))
	require.NoError(t, err)

	assert.Equal(t, "v*", cfg.Trigger.Pattern)
	assert.Equal(t, "ghp_env", cfg.Publisher.GitHub.Token)
	assert.Len(t, cfg.Platforms, 3, "defaults fill platforms")
	assert.Equal(t, artifact.KindMemory, cfg.Store.Kind)
}

func TestConfigError(t *testing.T) {
	err := configError(errors.New("bad"))
	assert.Equal(t, pipeline.ExitConfigFailed, pipeline.ExitCode(err))

	build := &pipeline.StageError{Stage: types.StageBuild, Err: errors.New("x")}
	assert.Same(t, build, configError(build), "stage errors are not re-attributed")
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "refs/tags/v1.2.3", normalizeRef("v1.2.3"))
	assert.Equal(t, "refs/heads/main", normalizeRef("refs/heads/main"))
	assert.Equal(t, "", normalizeRef(""))
}

func TestStoreFactory(t *testing.T) {
	ctx := context.Background()

	mem, err := storeFactory(testConfig())(ctx, "run-1")
	require.NoError(t, err)
	assert.IsType(t, &artifact.MemoryStore{}, mem)

	root := t.TempDir()
	cfg := testConfig()
	cfg.Store = config.StoreConfig{Kind: artifact.KindDisk, Dir: root}
	factory := storeFactory(cfg)

	first, err := factory(ctx, "run-1")
	require.NoError(t, err)
	second, err := factory(ctx, "run-2")
	require.NoError(t, err)

	require.NoError(t, first.Put(ctx, "boot-linux-amd64", []byte("a")))
	// Each run gets its own directory, so the same key is free again
	require.NoError(t, second.Put(ctx, "boot-linux-amd64", []byte("b")))
	assert.FileExists(t, filepath.Join(root, "run-1", "boot-linux-amd64"))
	assert.FileExists(t, filepath.Join(root, "run-2", "boot-linux-amd64"))
}

func TestStagingDir(t *testing.T) {
	cfg := testConfig()
	cfg.Build.WorkDir = "/src/boot"
	assert.Equal(t, filepath.Join("/src/boot", config.DefaultStagingDir), stagingDir(cfg))

	cfg.Build.StagingDir = "/var/staging"
	assert.Equal(t, "/var/staging", stagingDir(cfg))

	cfg.Build.StagingDir = ""
	assert.Empty(t, stagingDir(cfg))
}

func TestNewPublisher(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	t.Run("dir", func(t *testing.T) {
		cfg := testConfig()
		cfg.Publisher = config.PublisherConfig{Kind: config.PublisherDir, Dir: t.TempDir()}
		pub, err := newPublisher(ctx, cfg, types.RepositorySnapshot{}, logger)
		require.NoError(t, err)
		assert.IsType(t, &release.DirPublisher{}, pub)
	})

	t.Run("github from origin remote", func(t *testing.T) {
		cfg := testConfig()
		cfg.Publisher.GitHub.Token = "ghp_test"
		pub, err := newPublisher(ctx, cfg, types.RepositorySnapshot{Owner: "acme", Name: "boot"}, logger)
		require.NoError(t, err)
		assert.IsType(t, &release.GitHubPublisher{}, pub)
	})

	t.Run("github repository unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Publisher.GitHub.Token = "ghp_test"
		_, err := newPublisher(ctx, cfg, types.RepositorySnapshot{}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "repository is unknown")
		assert.Equal(t, pipeline.ExitConfigFailed, pipeline.ExitCode(err))
	})

	t.Run("github malformed repository", func(t *testing.T) {
		cfg := testConfig()
		cfg.Publisher.GitHub = config.GitHubConfig{Repository: "acme", Token: "ghp_test"}
		_, err := newPublisher(ctx, cfg, types.RepositorySnapshot{}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "owner/name")
	})
}

func TestOpenLedger_NoURL(t *testing.T) {
	assert.Nil(t, openLedger(context.Background(), testConfig(), logging.Discard()))
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Out: &buf, Format: "json"})

	progress := logProgress(logger)
	progress(pipeline.ProgressEvent{RunID: "run-1", State: types.RunRunning, Platform: "macos-amd64", Status: types.JobFailed, Message: "linker error"})

	line := buf.String()
	assert.Contains(t, line, `"level":"warning"`)
	assert.Contains(t, line, `"platform":"macos-amd64"`)
	assert.Contains(t, line, `"run_id":"run-1"`)
	assert.Contains(t, line, "linker error")
}
