package types

// ReleaseRecord is the published grouping of a tag and its attached artifacts.
// The tag never changes after creation; AttachedArtifacts grows during upload.
type ReleaseRecord struct {
	ID                int64    `json:"id"`
	Tag               string   `json:"tag"`
	Title             string   `json:"title"`
	Draft             bool     `json:"draft"`
	Prerelease        bool     `json:"prerelease"`
	URL               string   `json:"url,omitempty"`
	AttachedArtifacts []string `json:"attached_artifacts"`
}

// Attach records an uploaded asset name
func (r *ReleaseRecord) Attach(name string) {
	r.AttachedArtifacts = append(r.AttachedArtifacts, name)
}
