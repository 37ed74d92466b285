// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/build"
	"github.com/jonathan/boot-release/internal/release"
	"github.com/jonathan/boot-release/internal/schemas"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

// Publisher kinds
const (
	PublisherGitHub = "github"
	PublisherDir    = "dir"
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultServerAddr is where the webhook server listens by default
const DefaultServerAddr = ":8080"

// DefaultStagingDir holds renamed artifacts, relative to the build workdir
const DefaultStagingDir = "dist/staging"

// Config represents the release pipeline configuration that can be loaded
// from a YAML or JSON file. All fields are optional; missing values use
// defaults or must be provided via CLI flags or the environment.
type Config struct {
	Trigger     TriggerConfig              `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Platforms   []types.PlatformDescriptor `json:"platforms,omitempty" yaml:"platforms,omitempty" validate:"omitempty,dive"`
	Build       BuildConfig                `json:"build,omitempty" yaml:"build,omitempty"`
	Store       StoreConfig                `json:"store,omitempty" yaml:"store,omitempty"`
	Publisher   PublisherConfig            `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Release     ReleaseConfig              `json:"release,omitempty" yaml:"release,omitempty"`
	DatabaseURL string                     `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL run ledger
	Log         LogConfig                  `json:"log,omitempty" yaml:"log,omitempty"`
	Server      ServerConfig               `json:"server,omitempty" yaml:"server,omitempty"`
}

// TriggerConfig selects which tag references start a run
type TriggerConfig struct {
	Pattern       string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	RequireSemver bool   `json:"require_semver,omitempty" yaml:"require_semver,omitempty"`
}

// BuildConfig configures the external build command
type BuildConfig struct {
	Command    []string          `json:"command,omitempty" yaml:"command,omitempty"`
	WorkDir    string            `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	OutputDir  string            `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
	StagingDir string            `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty"`
	LogDir     string            `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
	Env        map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// StoreConfig selects the artifact store backend
type StoreConfig struct {
	Kind  string      `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=memory disk minio"`
	Dir   string      `json:"dir,omitempty" yaml:"dir,omitempty"` // Root for the disk store; each run gets a subdirectory
	Minio MinioConfig `json:"minio,omitempty" yaml:"minio,omitempty"`
}

// MinioConfig holds S3-compatible store settings
type MinioConfig struct {
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"` // Run ids are appended below this prefix
	UseSSL    bool   `json:"use_ssl,omitempty" yaml:"use_ssl,omitempty"`
}

// PublisherConfig selects the release service
type PublisherConfig struct {
	Kind   string       `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=github dir"`
	Dir    string       `json:"dir,omitempty" yaml:"dir,omitempty"` // Root for the dir publisher
	GitHub GitHubConfig `json:"github,omitempty" yaml:"github,omitempty"`
}

// GitHubConfig holds GitHub release settings
type GitHubConfig struct {
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"` // owner/name
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	UploadURL  string `json:"upload_url,omitempty" yaml:"upload_url,omitempty" validate:"omitempty,url"`
}

// ReleaseConfig controls the release record
type ReleaseConfig struct {
	TitleTemplate string `json:"title_template,omitempty" yaml:"title_template,omitempty"`
}

// LogConfig controls logger output
type LogConfig struct {
	Format  string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
	Verbose bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// ServerConfig controls the webhook server
type ServerConfig struct {
	Addr          string `json:"addr,omitempty" yaml:"addr,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty" yaml:"webhook_secret,omitempty"` // Verifies X-Hub-Signature-256
}

// Defaults returns the configuration used when nothing else is set
func Defaults() Config {
	return Config{
		Trigger:   TriggerConfig{Pattern: trigger.DefaultPattern},
		Platforms: types.DefaultPlatforms(),
		Build: BuildConfig{
			Command:    build.DefaultCommand(),
			WorkDir:    ".",
			OutputDir:  build.DefaultOutputDir,
			StagingDir: DefaultStagingDir,
		},
		Store:     StoreConfig{Kind: artifact.KindMemory},
		Publisher: PublisherConfig{Kind: PublisherGitHub},
		Release:   ReleaseConfig{TitleTemplate: release.DefaultTitleTemplate},
		Log:       LogConfig{Format: LogFormatText},
		Server:    ServerConfig{Addr: DefaultServerAddr},
	}
}

// LoadConfig loads configuration from a YAML or JSON file. Files ending in
// .json are parsed as JSON, anything else as YAML. The document is checked
// against the configuration schema before it is decoded.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parse(data, "JSON", json.Unmarshal)
	}
	return parse(data, "YAML", yaml.Unmarshal)
}

// ParseYAML parses configuration from YAML content
func ParseYAML(data []byte) (*Config, error) {
	return parse(data, "YAML", yaml.Unmarshal)
}

func parse(data []byte, format string, unmarshal func([]byte, any) error) (*Config, error) {
	var doc map[string]any
	if err := unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", format, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if err := schemas.ValidateReleaseConfig(doc); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	var cfg Config
	if err := unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", format, err)
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Trigger.Pattern != "" {
		if _, err := trigger.NewMatcher(c.Trigger.Pattern, c.Trigger.RequireSemver); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	// Duplicate platform ids and asset names are returned unwrapped so callers can match them
	if err := artifact.ValidateKeys(c.Platforms); err != nil {
		return err
	}

	if c.Release.TitleTemplate != "" {
		if _, err := release.RenderTitle(c.Release.TitleTemplate, "v0.0.0"); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	switch c.Store.Kind {
	case artifact.KindDisk:
		if c.Store.Dir == "" {
			return fmt.Errorf("config error: 'store.dir' is required for the disk store")
		}
	case artifact.KindMinio:
		if c.Store.Minio.Endpoint == "" || c.Store.Minio.Bucket == "" {
			return fmt.Errorf("config error: 'store.minio.endpoint' and 'store.minio.bucket' are required for the minio store")
		}
	}

	if c.Publisher.Kind == PublisherDir {
		if c.Publisher.Dir == "" {
			return fmt.Errorf("config error: 'publisher.dir' is required for the dir publisher")
		}
		for _, p := range c.Platforms {
			if p.PublishedAssetName == release.ManifestFile {
				return fmt.Errorf("config error: platform %s: asset name %q is reserved by the dir publisher", p.PlatformID, release.ManifestFile)
			}
		}
	}
	if c.Publisher.GitHub.Repository != "" {
		if _, _, err := c.Publisher.GitHub.OwnerRepo(); err != nil {
			return err
		}
	}

	if c.Build.WorkDir != "" {
		if info, err := os.Stat(c.Build.WorkDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: build workdir not found: %s", c.Build.WorkDir)
		}
	}

	return nil
}

// OwnerRepo splits Repository into owner and name
func (g GitHubConfig) OwnerRepo() (string, string, error) {
	owner, name, ok := strings.Cut(g.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("config error: github repository must be owner/name, got %q", g.Repository)
	}
	return owner, name, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Trigger.Pattern == "" {
		result.Trigger.Pattern = defaults.Trigger.Pattern
	}
	if len(result.Platforms) == 0 {
		result.Platforms = defaults.Platforms
	}

	if len(result.Build.Command) == 0 {
		result.Build.Command = defaults.Build.Command
	}
	if result.Build.WorkDir == "" {
		result.Build.WorkDir = defaults.Build.WorkDir
	}
	if result.Build.OutputDir == "" {
		result.Build.OutputDir = defaults.Build.OutputDir
	}
	if result.Build.StagingDir == "" {
		result.Build.StagingDir = defaults.Build.StagingDir
	}
	if result.Build.LogDir == "" {
		result.Build.LogDir = defaults.Build.LogDir
	}
	if result.Build.Env == nil {
		result.Build.Env = defaults.Build.Env
	}

	if result.Store.Kind == "" {
		result.Store.Kind = defaults.Store.Kind
	}
	if result.Store.Dir == "" {
		result.Store.Dir = defaults.Store.Dir
	}
	if result.Store.Minio == (MinioConfig{}) {
		result.Store.Minio = defaults.Store.Minio
	}

	if result.Publisher.Kind == "" {
		result.Publisher.Kind = defaults.Publisher.Kind
	}
	if result.Publisher.Dir == "" {
		result.Publisher.Dir = defaults.Publisher.Dir
	}
	if result.Publisher.GitHub.Repository == "" {
		result.Publisher.GitHub.Repository = defaults.Publisher.GitHub.Repository
	}
	if result.Publisher.GitHub.Token == "" {
		result.Publisher.GitHub.Token = defaults.Publisher.GitHub.Token
	}
	if result.Publisher.GitHub.BaseURL == "" {
		result.Publisher.GitHub.BaseURL = defaults.Publisher.GitHub.BaseURL
	}
	if result.Publisher.GitHub.UploadURL == "" {
		result.Publisher.GitHub.UploadURL = defaults.Publisher.GitHub.UploadURL
	}

	if result.Release.TitleTemplate == "" {
		result.Release.TitleTemplate = defaults.Release.TitleTemplate
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.Log.Format == "" {
		result.Log.Format = defaults.Log.Format
	}
	if result.Server.Addr == "" {
		result.Server.Addr = defaults.Server.Addr
	}
	if result.Server.WebhookSecret == "" {
		result.Server.WebhookSecret = defaults.Server.WebhookSecret
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
