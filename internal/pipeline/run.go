// Package pipeline provides the high-level orchestration of a release run:
// trigger check, parallel platform builds, join, and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/build"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/release"
	"github.com/jonathan/boot-release/internal/trigger"
	"github.com/jonathan/boot-release/internal/types"
)

// StoreFactory returns a fresh, empty artifact store scoped to one run
type StoreFactory func(ctx context.Context, runID string) (artifact.Store, error)

// MemoryStores is a StoreFactory that keeps artifacts in memory
func MemoryStores(context.Context, string) (artifact.Store, error) {
	return artifact.NewMemoryStore(), nil
}

// RunOptions holds configuration for the controller
type RunOptions struct {
	Matcher   *trigger.Matcher
	Platforms []types.PlatformDescriptor
	Builder   build.Builder
	Stores    StoreFactory // Defaults to MemoryStores
	Publisher release.Publisher

	// StagingDir, when set, keeps each renamed artifact under
	// <StagingDir>/<run_id>/<platform_id>/<published_asset_name>
	StagingDir    string
	TitleTemplate string

	Ledger     Ledger // Optional
	OnProgress ProgressCallback
	Logger     *logrus.Logger
}

// Controller runs the release workflow. It runs at most one release at a
// time, and releases are always published as final (not draft, not prerelease).
type Controller struct {
	opts RunOptions
	task func(store artifact.Store, stagingDir string) *build.Task
	now  func() time.Time
	log  logging.ContextLogger

	mu   sync.Mutex
	busy bool
}

// NewController validates the options and returns a controller.
// Descriptor and template problems are reported as a config-stage
// *StageError before any build can start.
func NewController(opts RunOptions) (*Controller, error) {
	if opts.Matcher == nil {
		m, err := trigger.NewMatcher(trigger.DefaultPattern, false)
		if err != nil {
			return nil, &StageError{Stage: types.StageConfig, Err: err}
		}
		opts.Matcher = m
	}
	if opts.Builder == nil {
		return nil, &StageError{Stage: types.StageConfig, Err: errors.New("no builder configured")}
	}
	if opts.Publisher == nil {
		return nil, &StageError{Stage: types.StageConfig, Err: errors.New("no release publisher configured")}
	}
	if len(opts.Platforms) == 0 {
		return nil, &StageError{Stage: types.StageConfig, Err: errors.New("no target platforms configured")}
	}
	if err := artifact.ValidateKeys(opts.Platforms); err != nil {
		return nil, &StageError{Stage: types.StageConfig, Err: err}
	}
	if opts.TitleTemplate == "" {
		opts.TitleTemplate = release.DefaultTitleTemplate
	}
	if _, err := release.RenderTitle(opts.TitleTemplate, "v0.0.0"); err != nil {
		return nil, &StageError{Stage: types.StageConfig, Err: err}
	}
	if opts.Stores == nil {
		opts.Stores = MemoryStores
	}

	c := &Controller{
		opts: opts,
		now:  time.Now,
		log:  logging.NewContextLogger(opts.Logger, "pipeline").InStruct("Controller"),
	}
	c.task = func(store artifact.Store, stagingDir string) *build.Task {
		return build.NewTask(opts.Builder, store, stagingDir, opts.Logger)
	}
	return c, nil
}

// Busy reports whether a run is in flight
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Run executes one release run for the event with a fresh run id
func (c *Controller) Run(ctx context.Context, event types.TriggerEvent) (*types.RunSummary, error) {
	return c.RunWithID(ctx, uuid.New(), event)
}

// RunWithID executes one release run for the event.
//
// A reference that does not match the trigger pattern is a no-op: the
// summary is marked Skipped and no error is returned. Otherwise every
// platform build is started concurrently; a failing build never cancels
// its siblings. Publishing starts only after every job is terminal and only
// if none failed. The returned error is a *StageError naming the failed
// stage; the summary is returned in every case except ErrBusy.
func (c *Controller) RunWithID(ctx context.Context, runID uuid.UUID, event types.TriggerEvent) (*types.RunSummary, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	r := &run{
		Controller: c,
		id:         runID,
		summary: &types.RunSummary{
			RunID:     runID.String(),
			Reference: event.Reference,
			State:     types.RunIdle,
			StartedAt: c.now(),
		},
	}
	r.log = c.log.InFunc("Run").WithRun(r.summary.RunID)

	if !c.opts.Matcher.MatchEvent(event) {
		r.summary.Skipped = true
		r.summary.FinishedAt = c.now()
		r.log.WithField("reference", event.Reference).Info("Reference does not match trigger pattern; nothing to do")
		r.emit(ProgressEvent{Message: fmt.Sprintf("skipped: %s does not match %s", event.Reference, c.opts.Matcher.Pattern())})
		return r.summary, nil
	}

	r.summary.Tag = event.TagName()
	if c.opts.Ledger != nil {
		if err := c.opts.Ledger.CreateRun(ctx, runID, event); err != nil {
			r.log.WithError(err).Warn("Failed to record run; continuing without ledger")
		}
	}

	err := r.execute(ctx, event)
	r.summary.FinishedAt = c.now()
	if err != nil {
		r.summary.Error = err.Error()
	}

	if c.opts.Ledger != nil {
		if lerr := c.opts.Ledger.CompleteRun(ctx, runID, r.summary); lerr != nil {
			r.log.WithError(lerr).Warn("Failed to record run completion")
		}
	}
	return r.summary, err
}

// run carries the state of one in-flight release run
type run struct {
	*Controller
	id      uuid.UUID
	summary *types.RunSummary
	log     logging.ContextLogger
}

func (r *run) emit(e ProgressEvent) {
	if r.opts.OnProgress == nil {
		return
	}
	e.RunID = r.summary.RunID
	if e.State == "" {
		e.State = r.summary.State
	}
	r.opts.OnProgress(e)
}

func (r *run) transition(state types.RunState, message string) {
	r.summary.State = state
	r.log.WithField("state", state).Debug(message)
	r.emit(ProgressEvent{State: state, Message: message})
}

func (r *run) fail(stage string, err error) error {
	r.summary.FailureStage = stage
	r.transition(types.RunFailed, fmt.Sprintf("run failed in %s stage", stage))
	return &StageError{Stage: stage, Err: err}
}

func (r *run) execute(ctx context.Context, event types.TriggerEvent) error {
	store, err := r.opts.Stores(ctx, r.summary.RunID)
	if err != nil {
		return r.fail(types.StageConfig, fmt.Errorf("failed to open artifact store: %w", err))
	}

	r.transition(types.RunRunning, fmt.Sprintf("building %d platforms for %s", len(r.opts.Platforms), r.summary.Tag))
	jobs, buildErr := r.buildAll(ctx, store)

	r.summary.Jobs = make([]types.BuildJob, len(jobs))
	for i, job := range jobs {
		r.summary.Jobs[i] = *job
	}
	if buildErr != nil {
		return r.fail(types.StageBuild, buildErr)
	}

	r.transition(types.RunAllJobsDone, "all builds succeeded")
	artifacts, err := store.List(ctx)
	if err != nil {
		r.log.WithError(err).Warn("Failed to list artifacts for the run summary")
	}
	r.summary.Artifacts = artifacts

	r.transition(types.RunPublishing, fmt.Sprintf("publishing release %s", r.summary.Tag))
	if err := r.publish(ctx, store, event); err != nil {
		return r.fail(types.StagePublish, err)
	}

	r.transition(types.RunCompleted, fmt.Sprintf("release %s published", r.summary.Tag))
	return nil
}

// buildAll starts one task per platform and waits until every job is
// terminal. Each goroutine owns exactly one job.
func (r *run) buildAll(ctx context.Context, store artifact.Store) ([]*types.BuildJob, error) {
	stagingDir := ""
	if r.opts.StagingDir != "" {
		stagingDir = filepath.Join(r.opts.StagingDir, r.summary.RunID)
	}
	task := r.task(store, stagingDir)

	jobs := make([]*types.BuildJob, len(r.opts.Platforms))
	for i, p := range r.opts.Platforms {
		jobs[i] = types.NewBuildJob(p)
	}

	// A plain Group: one failed build must not cancel the others
	var g errgroup.Group
	failures := make([]error, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			r.emit(ProgressEvent{Platform: job.Descriptor.PlatformID, Status: types.JobRunning, Message: "build started"})
			failures[i] = task.Run(ctx, job)

			msg := "build succeeded"
			if failures[i] != nil {
				msg = failures[i].Error()
			}
			r.emit(ProgressEvent{Platform: job.Descriptor.PlatformID, Status: job.Status, Message: msg})

			if r.opts.Ledger != nil {
				if err := r.opts.Ledger.UpsertJob(ctx, r.id, *job); err != nil {
					r.log.WithPlatform(job.Descriptor.PlatformID).WithError(err).Warn("Failed to record job")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			return jobs, fmt.Errorf("job for %s ended in non-terminal status %s", job.Descriptor.PlatformID, job.Status)
		}
	}
	return jobs, errors.Join(failures...)
}

func (r *run) publish(ctx context.Context, store artifact.Store, event types.TriggerEvent) error {
	title, err := release.RenderTitle(r.opts.TitleTemplate, r.summary.Tag)
	if err != nil {
		return err
	}

	req := release.ReleaseRequest{
		Tag:       r.summary.Tag,
		Title:     title,
		CommitSHA: event.Repository.CommitSHA,
	}

	report, err := release.Publish(ctx, r.opts.Publisher, store, req, r.opts.Logger)
	if report != nil && report.Release != nil {
		r.summary.Release = report.Release
		for _, f := range report.Failures {
			r.summary.UploadFailures = append(r.summary.UploadFailures, types.UploadFailure{Key: f.Key, Error: f.Cause.Error()})
		}
		if r.opts.Ledger != nil {
			if lerr := r.opts.Ledger.RecordRelease(ctx, r.id, *report.Release); lerr != nil {
				r.log.WithError(lerr).Warn("Failed to record release")
			}
		}
	}
	return err
}
