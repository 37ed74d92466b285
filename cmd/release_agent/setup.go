package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/build"
	"github.com/jonathan/boot-release/internal/config"
	"github.com/jonathan/boot-release/internal/db"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/release"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

// defaultDryRunDir receives releases when --dry-run is set without a publisher dir
const defaultDryRunDir = "dist/releases"

// pipelineFlags are the configuration overrides shared by run and serve
type pipelineFlags struct {
	configPath string
	pattern    string
	semver     bool
	workdir    string
	store      string
	storeDir   string
	publisher  string
	publishDir string
	dryRun     bool
	dbURL      string
	verbose    bool
	logFormat  string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	// Config file flag (processed first)
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to release config (YAML, or JSON by extension); other flags override its values")

	cmd.Flags().StringVar(&f.pattern, "pattern", "", "Tag glob that triggers a run (default \"v*\")")
	cmd.Flags().BoolVar(&f.semver, "semver", false, "Also require the tag to parse as a semantic version")
	cmd.Flags().StringVarP(&f.workdir, "workdir", "w", "", "Source checkout the build command runs in (default \".\")")
	cmd.Flags().StringVar(&f.store, "store", "", "Artifact store: memory, disk or minio (default \"memory\")")
	cmd.Flags().StringVar(&f.storeDir, "store-dir", "", "Root directory for the disk store")
	cmd.Flags().StringVar(&f.publisher, "publisher", "", "Release publisher: github or dir (default \"github\")")
	cmd.Flags().StringVar(&f.publishDir, "publish-dir", "", "Root directory for the dir publisher")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Publish into a local directory instead of GitHub")
	cmd.Flags().StringVar(&f.dbURL, "db-url", "", "PostgreSQL run ledger URL (optional, defaults to DATABASE_URL env var)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text or json (default \"text\")")
}

// apply overrides cfg with the flags that were explicitly set
func (f *pipelineFlags) apply(cfg *config.Config, changed func(string) bool) {
	if changed("pattern") {
		cfg.Trigger.Pattern = f.pattern
	}
	if changed("semver") {
		cfg.Trigger.RequireSemver = f.semver
	}
	if changed("workdir") {
		cfg.Build.WorkDir = f.workdir
	}
	if changed("store") {
		cfg.Store.Kind = f.store
	}
	if changed("store-dir") {
		cfg.Store.Dir = f.storeDir
	}
	if changed("publisher") {
		cfg.Publisher.Kind = f.publisher
	}
	if changed("publish-dir") {
		cfg.Publisher.Dir = f.publishDir
	}
	if changed("db-url") {
		cfg.DatabaseURL = f.dbURL
	}
	if changed("verbose") {
		cfg.Log.Verbose = f.verbose
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if f.dryRun {
		cfg.Publisher.Kind = config.PublisherDir
		if cfg.Publisher.Dir == "" {
			cfg.Publisher.Dir = defaultDryRunDir
		}
	}
}

// configError attributes err to the config stage so it exits with code 4
func configError(err error) error {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return err
	}
	return &pipeline.StageError{Stage: types.StageConfig, Err: err}
}

// loadConfig merges, in increasing priority: defaults, environment, the
// config file and changed flags. The result is validated.
func loadConfig(f *pipelineFlags, changed func(string) bool) (*config.Config, error) {
	cfg := &config.Config{}
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, configError(fmt.Errorf("failed to load config: %w", err))
		}
		cfg = loaded
	}

	f.apply(cfg, changed)
	cfg.ApplyEnv(nil)
	merged := cfg.MergeWithDefaults(config.Defaults())

	if err := merged.Validate(); err != nil {
		return nil, configError(err)
	}
	return &merged, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logrus.Logger {
	return logging.New(logging.Options{Out: out, Format: cfg.Log.Format, Verbose: cfg.Log.Verbose})
}

func newMatcher(cfg *config.Config) (*trigger.Matcher, error) {
	m, err := trigger.NewMatcher(cfg.Trigger.Pattern, cfg.Trigger.RequireSemver)
	if err != nil {
		return nil, configError(err)
	}
	return m, nil
}

// normalizeRef accepts a bare tag name as shorthand for refs/tags/<name>
func normalizeRef(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "refs/") {
		return ref
	}
	return types.TagRefPrefix + ref
}

// storeFactory returns a factory that gives every run its own empty store
func storeFactory(cfg *config.Config) pipeline.StoreFactory {
	switch cfg.Store.Kind {
	case artifact.KindDisk:
		root := cfg.Store.Dir
		return func(_ context.Context, runID string) (artifact.Store, error) {
			store, err := artifact.NewDiskStore(filepath.Join(root, runID))
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	case artifact.KindMinio:
		mc := cfg.Store.Minio
		return func(ctx context.Context, runID string) (artifact.Store, error) {
			store, err := artifact.NewMinioStore(ctx, artifact.MinioConfig{
				Endpoint:  mc.Endpoint,
				AccessKey: mc.AccessKey,
				SecretKey: mc.SecretKey,
				Bucket:    mc.Bucket,
				Prefix:    path.Join(mc.Prefix, runID),
				UseSSL:    mc.UseSSL,
			})
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	default:
		return pipeline.MemoryStores
	}
}

// newPublisher builds the configured publisher. The GitHub repository
// falls back to the checkout's origin remote.
func newPublisher(ctx context.Context, cfg *config.Config, repo types.RepositorySnapshot, logger *logrus.Logger) (release.Publisher, error) {
	if cfg.Publisher.Kind == config.PublisherDir {
		pub, err := release.NewDirPublisher(cfg.Publisher.Dir)
		if err != nil {
			return nil, configError(err)
		}
		return pub, nil
	}

	gh := cfg.Publisher.GitHub
	if gh.Repository == "" {
		gh.Repository = repo.FullName()
	}
	if gh.Repository == "" {
		return nil, configError(errors.New("github repository is unknown: set publisher.github.repository, GITHUB_REPOSITORY, or an origin remote"))
	}
	owner, name, err := gh.OwnerRepo()
	if err != nil {
		return nil, configError(err)
	}
	if gh.Token == "" {
		return nil, configError(errors.New("a GitHub token is required: set GITHUB_TOKEN or publisher.github.token"))
	}

	pub, err := release.NewGitHubPublisher(ctx, release.GitHubConfig{
		Owner:     owner,
		Repo:      name,
		Token:     gh.Token,
		BaseURL:   gh.BaseURL,
		UploadURL: gh.UploadURL,
	}, logger)
	if err != nil {
		return nil, configError(err)
	}
	return pub, nil
}

// openLedger connects to the run ledger. A missing URL or an unreachable
// database yields nil; runs proceed without history.
func openLedger(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *db.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	log := logging.NewContextLogger(logger, "main").InFunc("openLedger")

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to database. Continuing without run ledger")
		return nil
	}
	if err := database.EnsureSchema(ctx); err != nil {
		log.WithError(err).Warn("Failed to prepare run ledger schema. Continuing without run ledger")
		database.Close()
		return nil
	}
	return database
}

// newController wires the configured builder, store, publisher and ledger
func newController(ctx context.Context, cfg *config.Config, repo types.RepositorySnapshot, ledger *db.DB, logger *logrus.Logger, onProgress pipeline.ProgressCallback) (*pipeline.Controller, error) {
	matcher, err := newMatcher(cfg)
	if err != nil {
		return nil, err
	}

	builder, err := build.NewCommandBuilder(build.CommandConfig{
		Command:   cfg.Build.Command,
		WorkDir:   cfg.Build.WorkDir,
		OutputDir: cfg.Build.OutputDir,
		Env:       cfg.Build.Env,
		LogDir:    cfg.Build.LogDir,
	}, logger)
	if err != nil {
		return nil, configError(err)
	}

	publisher, err := newPublisher(ctx, cfg, repo, logger)
	if err != nil {
		return nil, err
	}

	opts := pipeline.RunOptions{
		Matcher:       matcher,
		Platforms:     cfg.Platforms,
		Builder:       builder,
		Stores:        storeFactory(cfg),
		Publisher:     publisher,
		StagingDir:    stagingDir(cfg),
		TitleTemplate: cfg.Release.TitleTemplate,
		OnProgress:    onProgress,
		Logger:        logger,
	}
	if ledger != nil {
		opts.Ledger = ledger
	}
	return pipeline.NewController(opts)
}

// stagingDir resolves a relative staging dir against the build workdir
func stagingDir(cfg *config.Config) string {
	dir := cfg.Build.StagingDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cfg.Build.WorkDir, dir)
}

// logProgress reports controller progress through the logger
func logProgress(logger *logrus.Logger) pipeline.ProgressCallback {
	log := logging.NewContextLogger(logger, "main")
	return func(e pipeline.ProgressEvent) {
		entry := log.WithRun(e.RunID)
		entry.Entry = entry.WithField("state", e.State)
		if e.Platform != "" {
			entry = entry.WithPlatform(e.Platform)
			entry.Entry = entry.WithField("status", e.Status)
		}
		if e.Status == types.JobFailed {
			entry.Warn(e.Message)
			return
		}
		entry.Info(e.Message)
	}
}
