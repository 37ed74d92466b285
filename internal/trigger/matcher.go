// Package trigger decides whether an incoming reference starts a release run.
package trigger

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/jonathan/boot-release/internal/types"
)

// DefaultPattern matches version tags such as v1.2.3
const DefaultPattern = "v*"

// Matcher gates pipeline runs on tag references
type Matcher struct {
	pattern       string
	requireSemver bool
}

// NewMatcher creates a matcher for the given glob. An empty pattern uses DefaultPattern.
func NewMatcher(pattern string, requireSemver bool) (*Matcher, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid tag pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, requireSemver: requireSemver}, nil
}

// Pattern returns the configured glob
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether reference names a tag satisfying the pattern.
// Malformed references never match.
func (m *Matcher) Match(reference string) bool {
	tag := types.TriggerEvent{Reference: reference}.TagName()
	if tag == "" {
		return false
	}

	ok, err := path.Match(m.pattern, tag)
	if err != nil || !ok {
		return false
	}

	// Strict parsing rejects shorthand such as v1 or v1.2 and leading zeros
	if m.requireSemver {
		if _, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v")); err != nil {
			return false
		}
	}
	return true
}

// MatchEvent is Match applied to the event's reference
func (m *Matcher) MatchEvent(e types.TriggerEvent) bool {
	return m.Match(e.Reference)
}

// Tag returns the tag name when reference matches, or "" when it doesn't
func (m *Matcher) Tag(reference string) string {
	if !m.Match(reference) {
		return ""
	}
	return types.TriggerEvent{Reference: reference}.TagName()
}
