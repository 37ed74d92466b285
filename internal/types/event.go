package types

import "strings"

// TagRefPrefix is the reference namespace that holds tags
const TagRefPrefix = "refs/tags/"

// RepositorySnapshot describes the source tree a run builds from
type RepositorySnapshot struct {
	Path      string `json:"path,omitempty"`       // Local checkout directory
	CommitSHA string `json:"commit_sha,omitempty"` // Commit the reference points at
	Owner     string `json:"owner,omitempty"`
	Name      string `json:"name,omitempty"`
}

// FullName returns "owner/name", or an empty string when either part is unknown
func (r RepositorySnapshot) FullName() string {
	if r.Owner == "" || r.Name == "" {
		return ""
	}
	return r.Owner + "/" + r.Name
}

// TriggerEvent is the inbound signal that starts a pipeline run.
// It is treated as immutable once received.
type TriggerEvent struct {
	Reference  string             `json:"reference"`
	Repository RepositorySnapshot `json:"repository"`
}

// IsTagRef reports whether the reference names a tag
func (e TriggerEvent) IsTagRef() bool {
	return strings.HasPrefix(e.Reference, TagRefPrefix) && len(e.Reference) > len(TagRefPrefix)
}

// TagName returns the tag portion of the reference, or an empty string if the
// reference does not name a tag
func (e TriggerEvent) TagName() string {
	if !e.IsTagRef() {
		return ""
	}
	return strings.TrimPrefix(e.Reference, TagRefPrefix)
}
