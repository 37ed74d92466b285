package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/boot-release/internal/types"
)

// -----------------------------------------------------------------------------
// Run ledger methods. *DB satisfies pipeline.Ledger.
// -----------------------------------------------------------------------------

// CreateRun records the start of a release run
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, event types.TriggerEvent) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO release_runs (id, reference, tag, repository, commit_sha, state)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, event.Reference, event.TagName(), event.Repository.FullName(),
		event.Repository.CommitSHA, string(types.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpsertJob records the latest status of a platform build
func (db *DB) UpsertJob(ctx context.Context, runID uuid.UUID, job types.BuildJob) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO release_jobs (run_id, platform_id, target, raw_artifact_name, published_asset_name,
		                           status, artifact_path, error_message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (run_id, platform_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     artifact_path = EXCLUDED.artifact_path,
		     error_message = EXCLUDED.error_message,
		     started_at = EXCLUDED.started_at,
		     finished_at = EXCLUDED.finished_at,
		     updated_at = NOW()`,
		runID, job.Descriptor.PlatformID, job.Descriptor.Target,
		job.Descriptor.RawArtifactName, job.Descriptor.PublishedAssetName,
		string(job.Status), nullString(job.ProducedArtifactPath), nullString(job.Error),
		nullTime(job.StartedAt), nullTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job %s: %w", job.Descriptor.PlatformID, err)
	}
	return nil
}

// RecordRelease stores the release record created by a run
func (db *DB) RecordRelease(ctx context.Context, runID uuid.UUID, record types.ReleaseRecord) error {
	attached := record.AttachedArtifacts
	if attached == nil {
		attached = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO release_records (run_id, release_id, tag, title, url, draft, prerelease, attached_artifacts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (run_id) DO UPDATE SET attached_artifacts = EXCLUDED.attached_artifacts`,
		runID, record.ID, record.Tag, record.Title, record.URL, record.Draft, record.Prerelease, attached,
	)
	if err != nil {
		return fmt.Errorf("failed to record release %s: %w", record.Tag, err)
	}
	return nil
}

// CompleteRun marks a run as finished with its terminal state
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, summary *types.RunSummary) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE release_runs
		 SET state = $1, failure_stage = $2, error_message = $3, completed_at = NOW()
		 WHERE id = $4`,
		string(summary.State), nullString(summary.FailureStage), nullString(summary.Error), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var r Run
	err := db.pool.QueryRow(ctx,
		`SELECT id, reference, tag, repository, commit_sha, state, failure_stage,
		        error_message, started_at, completed_at
		 FROM release_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Reference, &r.Tag, &r.Repository, &r.CommitSHA, &r.State,
		&r.FailureStage, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// ListJobs returns the jobs of a run ordered by platform id
func (db *DB) ListJobs(ctx context.Context, runID uuid.UUID) ([]Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT run_id, platform_id, target, raw_artifact_name, published_asset_name, status,
		        artifact_path, error_message, started_at, finished_at
		 FROM release_jobs WHERE run_id = $1 ORDER BY platform_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.RunID, &j.PlatformID, &j.Target, &j.RawArtifactName, &j.PublishedAssetName,
			&j.Status, &j.ArtifactPath, &j.ErrorMessage, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// GetRelease returns the release recorded for a run, or nil if none was created
func (db *DB) GetRelease(ctx context.Context, runID uuid.UUID) (*Release, error) {
	var r Release
	err := db.pool.QueryRow(ctx,
		`SELECT run_id, release_id, tag, title, url, draft, prerelease, attached_artifacts, created_at
		 FROM release_records WHERE run_id = $1`,
		runID,
	).Scan(&r.RunID, &r.ReleaseID, &r.Tag, &r.Title, &r.URL, &r.Draft, &r.Prerelease,
		&r.AttachedArtifacts, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	return &r, nil
}

// GetRunSummary rebuilds a run summary from the ledger
func (db *DB) GetRunSummary(ctx context.Context, runID uuid.UUID) (*types.RunSummary, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	jobs, err := db.ListJobs(ctx, runID)
	if err != nil {
		return nil, err
	}
	rel, err := db.GetRelease(ctx, runID)
	if err != nil {
		return nil, err
	}
	return BuildSummary(run, jobs, rel), nil
}

// BuildSummary converts ledger rows into a RunSummary
func BuildSummary(run *Run, jobs []Job, rel *Release) *types.RunSummary {
	s := &types.RunSummary{
		RunID:        run.ID.String(),
		Reference:    run.Reference,
		Tag:          run.Tag,
		State:        types.RunState(run.State),
		FailureStage: deref(run.FailureStage),
		Error:        deref(run.ErrorMessage),
		StartedAt:    run.StartedAt,
	}
	if run.CompletedAt != nil {
		s.FinishedAt = *run.CompletedAt
	}

	for _, j := range jobs {
		job := types.BuildJob{
			Descriptor: types.PlatformDescriptor{
				PlatformID:         j.PlatformID,
				RawArtifactName:    j.RawArtifactName,
				PublishedAssetName: j.PublishedAssetName,
				Target:             j.Target,
			},
			Status:               types.JobStatus(j.Status),
			ProducedArtifactPath: deref(j.ArtifactPath),
			Error:                deref(j.ErrorMessage),
		}
		if j.StartedAt != nil {
			job.StartedAt = *j.StartedAt
		}
		if j.FinishedAt != nil {
			job.FinishedAt = *j.FinishedAt
		}
		s.Jobs = append(s.Jobs, job)
	}

	if rel != nil {
		s.Release = &types.ReleaseRecord{
			ID:                rel.ReleaseID,
			Tag:               rel.Tag,
			Title:             rel.Title,
			URL:               rel.URL,
			Draft:             rel.Draft,
			Prerelease:        rel.Prerelease,
			AttachedArtifacts: rel.AttachedArtifacts,
		}
	}
	return s
}
