package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/release"
)

func runForTest(t *testing.T, flags *pipelineFlags, ref, repo string, changed ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	err := runRelease(context.Background(), flags, ref, repo, changedOf(changed...), &out, &logs)
	return out.String(), err
}

func TestRunRelease_PublishesAllPlatforms(t *testing.T) {
	requireShell(t)
	isolateEnv(t)

	repo := initRepo(t, "")
	releases := t.TempDir()
	flags := &pipelineFlags{configPath: writeConfig(t, releases), workdir: repo}

	out, err := runForTest(t, flags, "v2.0.0", "", "workdir")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ExitOK, pipeline.ExitCode(err))

	assert.Contains(t, out, "TARGET PLATFORMS (3)")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "v2.0.0")

	dir := filepath.Join(releases, "v2.0.0")
	manifest, err := release.ReadManifest(dir)
	require.NoError(t, err)
	assert.False(t, manifest.Draft)
	assert.False(t, manifest.Prerelease)

	var names []string
	for _, a := range manifest.Assets {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"boot-linux-amd64", "boot-windows-amd64.exe", "boot-macos-amd64"}, names)

	// Renaming preserves content
	data, err := os.ReadFile(filepath.Join(dir, "boot-windows-amd64.exe"))
	require.NoError(t, err)
	assert.Equal(t, "windows-amd64", string(data))

	// The renamed copies are staged under the workdir by default
	staged, err := filepath.Glob(filepath.Join(repo, "dist", "staging", "*", "windows-amd64", "boot-windows-amd64.exe"))
	require.NoError(t, err)
	assert.Len(t, staged, 1)
}

func TestRunRelease_TagAtHead(t *testing.T) {
	requireShell(t)
	isolateEnv(t)

	repo := initRepo(t, "v1.4.0")
	releases := t.TempDir()
	flags := &pipelineFlags{configPath: writeConfig(t, releases), workdir: repo}

	_, err := runForTest(t, flags, "", "", "workdir")
	require.NoError(t, err)

	manifest, err := release.ReadManifest(filepath.Join(releases, "v1.4.0"))
	require.NoError(t, err)
	assert.Len(t, manifest.Assets, 3)
	assert.NotEmpty(t, manifest.CommitSHA)
}

func TestRunRelease_BuildFailurePublishesNothing(t *testing.T) {
	requireShell(t)
	isolateEnv(t)

	repo := initRepo(t, "")
	releases := t.TempDir()
	flags := &pipelineFlags{configPath: writeConfig(t, releases, "windows-amd64"), workdir: repo}

	out, err := runForTest(t, flags, "refs/tags/v2.0.0", "", "workdir")
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitBuildFailed, pipeline.ExitCode(err))
	assert.Contains(t, out, "failed (build stage)")
	assert.Contains(t, out, "✗ windows-amd64")

	_, statErr := os.Stat(filepath.Join(releases, "v2.0.0"))
	assert.True(t, os.IsNotExist(statErr), "no release may exist after a build failure")
}

func TestRunRelease_MismatchIsNoOp(t *testing.T) {
	isolateEnv(t)

	repo := initRepo(t, "")
	releases := t.TempDir()
	// The build command would fail; it must never run
	flags := &pipelineFlags{configPath: writeConfig(t, releases, "linux-amd64", "windows-amd64", "macos-amd64"), workdir: repo}

	out, err := runForTest(t, flags, "refs/heads/main", "", "workdir")
	require.NoError(t, err)
	assert.Contains(t, out, "skip")

	entries, err := os.ReadDir(releases)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRelease_NoTagAtHeadIsNoOp(t *testing.T) {
	isolateEnv(t)

	repo := initRepo(t, "")
	flags := &pipelineFlags{configPath: writeConfig(t, t.TempDir()), workdir: repo}

	out, err := runForTest(t, flags, "", "", "workdir")
	require.NoError(t, err)
	assert.Contains(t, out, "refs/heads/master")
	assert.Contains(t, out, "skip")
}

func TestRunRelease_ConfigErrors(t *testing.T) {
	isolateEnv(t)
	repo := initRepo(t, "")

	dupPath := filepath.Join(t.TempDir(), "dup.yml")
	require.NoError(t, os.WriteFile(dupPath, []byte(`platforms:
  - platform_id: linux-amd64
    raw_artifact_name: boot
    published_asset_name: boot
  - platform_id: macos-amd64
    raw_artifact_name: boot
    published_asset_name: boot
`), 0644))

	tests := []struct {
		name    string
		flags   *pipelineFlags
		changed []string
		wantErr string
	}{
		{
			name:    "duplicate asset names",
			flags:   &pipelineFlags{configPath: dupPath, workdir: repo},
			changed: []string{"workdir"},
			wantErr: "boot",
		},
		{
			name:    "missing config file",
			flags:   &pipelineFlags{configPath: filepath.Join(repo, "nope.yml")},
			wantErr: "failed to load config",
		},
		{
			name:    "unknown store",
			flags:   &pipelineFlags{store: "s3", workdir: repo, dryRun: true},
			changed: []string{"store", "workdir"},
			wantErr: "config error",
		},
		{
			name:    "github without token",
			flags:   &pipelineFlags{workdir: repo},
			changed: []string{"workdir"},
			wantErr: "GitHub token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runForTest(t, tt.flags, "v1.0.0", "", tt.changed...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, pipeline.ExitConfigFailed, pipeline.ExitCode(err))
		})
	}
}

func TestRunRelease_DryRunFlag(t *testing.T) {
	requireShell(t)
	isolateEnv(t)

	repo := initRepo(t, "")
	releases := t.TempDir()
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "unused"))
	flags := &pipelineFlags{configPath: cfgPath, workdir: repo, publishDir: releases, dryRun: true}

	_, err := runForTest(t, flags, "v0.1.0", "", "workdir", "publish-dir", "dry-run")
	require.NoError(t, err)

	_, err = release.ReadManifest(filepath.Join(releases, "v0.1.0"))
	assert.NoError(t, err)
}

func TestResolveEvent_FallsBackToGivenRef(t *testing.T) {
	event, err := resolveEvent(t.TempDir(), "refs/tags/v9.9.9", newLogger(testConfig(), &bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, "refs/tags/v9.9.9", event.Reference)
}

func TestResolveEvent_NoRefOutsideCheckout(t *testing.T) {
	_, err := resolveEvent(t.TempDir(), "", newLogger(testConfig(), &bytes.Buffer{}))
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitConfigFailed, pipeline.ExitCode(err))
}
