package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// isolateEnv clears the variables config.ApplyEnv reads so a developer's
// .env cannot leak into a test
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GITHUB_TOKEN", "GITHUB_REPOSITORY", "DATABASE_URL", "WEBHOOK_SECRET",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	} {
		t.Setenv(key, "")
	}
}

// requireShell skips tests that drive the build through sh
func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build command fixtures use sh")
	}
}

// initRepo creates a checkout with one commit, an origin remote and,
// if tag is non-empty, a lightweight tag at HEAD
func initRepo(t *testing.T, tag string) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{"https://github.com/acme/boot.git"}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"boot\"\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("Cargo.toml")
	require.NoError(t, err)
	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Release Bot", Email: "bot@example.com", When: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	if tag != "" {
		_, err = repo.CreateTag(tag, hash, nil)
		require.NoError(t, err)
	}
	return dir
}

// writeConfig writes a release config whose build command writes the
// platform id into the raw artifact. Platforms listed in fail exit 1.
func writeConfig(t *testing.T, releaseDir string, fail ...string) string {
	t.Helper()

	script := "mkdir -p out/{{.PlatformID}} && printf {{.PlatformID}} > out/{{.PlatformID}}/{{.RawArtifactName}}"
	for _, id := range fail {
		script = fmt.Sprintf("test {{.PlatformID}} != %s && %s", id, script)
	}

	var sb strings.Builder
	sb.WriteString("build:\n")
	sb.WriteString(fmt.Sprintf("  command: [\"sh\", \"-c\", %q]\n", script))
	sb.WriteString("  output_dir: \"out/{{.PlatformID}}\"\n")
	sb.WriteString("publisher:\n")
	sb.WriteString("  kind: dir\n")
	sb.WriteString(fmt.Sprintf("  dir: %q\n", releaseDir))

	path := filepath.Join(t.TempDir(), "release.yml")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}

// changedOf reports the given flag names as explicitly set
func changedOf(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}
