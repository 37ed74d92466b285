package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/boot-release/internal/pipeline"
)

func TestRunMatch(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		pattern  string
		semver   bool
		changed  []string
		decision string
	}{
		{name: "default pattern tag", ref: "refs/tags/v1.2.3", decision: "release"},
		{name: "bare tag", ref: "v1.2.3", decision: "release"},
		{name: "branch", ref: "refs/heads/main", decision: "skip"},
		{name: "custom pattern", ref: "release-7", pattern: "release-*", changed: []string{"pattern"}, decision: "release"},
		{name: "semver required", ref: "v1.x", semver: true, changed: []string{"semver"}, decision: "skip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runMatch(tt.ref, "", tt.pattern, tt.semver, changedOf(tt.changed...), &out)
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Decision:  "+tt.decision)
		})
	}
}

func TestRunMatch_PatternFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yml")
	require.NoError(t, os.WriteFile(path, []byte("trigger:\n  pattern: \"boot-*\"\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, runMatch("boot-1", path, "", false, changedOf(), &out))
	assert.Contains(t, out.String(), "Decision:  release")
	assert.Contains(t, out.String(), "boot-*")
}

func TestRunMatch_InvalidPattern(t *testing.T) {
	err := runMatch("v1", "", "[", false, changedOf("pattern"), &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, pipeline.ExitConfigFailed, pipeline.ExitCode(err))
}
