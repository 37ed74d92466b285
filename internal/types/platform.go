// Package types provides type definitions for structured data used throughout the release pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

// PlatformDescriptor identifies one build target and its artifact naming convention
type PlatformDescriptor struct {
	PlatformID         string            `json:"platform_id" yaml:"platform_id" validate:"required"`
	RawArtifactName    string            `json:"raw_artifact_name" yaml:"raw_artifact_name" validate:"required"`
	PublishedAssetName string            `json:"published_asset_name" yaml:"published_asset_name" validate:"required,excludesall=/\\"`
	Target             string            `json:"target,omitempty" yaml:"target,omitempty"` // Toolchain target triple
	Env                map[string]string `json:"env,omitempty" yaml:"env,omitempty"`       // Extra environment for the build tool
}

// DefaultPlatforms returns the statically enumerated platform set for the boot binary.
// A fresh slice is returned on every call so callers may modify it.
func DefaultPlatforms() []PlatformDescriptor {
	return []PlatformDescriptor{
		{
			PlatformID:         "linux-amd64",
			RawArtifactName:    "boot",
			PublishedAssetName: "boot-linux-amd64",
			Target:             "x86_64-unknown-linux-gnu",
		},
		{
			PlatformID:         "windows-amd64",
			RawArtifactName:    "boot.exe",
			PublishedAssetName: "boot-windows-amd64.exe",
			Target:             "x86_64-pc-windows-gnu",
		},
		{
			PlatformID:         "macos-amd64",
			RawArtifactName:    "boot",
			PublishedAssetName: "boot-macos-amd64",
			Target:             "x86_64-apple-darwin",
		},
	}
}

// AssetNames returns the published asset names of the given descriptors, in order
func AssetNames(platforms []PlatformDescriptor) []string {
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.PublishedAssetName)
	}
	return names
}
