package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonathan/boot-release/internal/types"
)

// Ledger persists run history. Implementations must be safe for concurrent
// use since build jobs report their status in parallel. Ledger errors are
// logged and never change the outcome of a run.
type Ledger interface {
	CreateRun(ctx context.Context, runID uuid.UUID, event types.TriggerEvent) error
	UpsertJob(ctx context.Context, runID uuid.UUID, job types.BuildJob) error
	RecordRelease(ctx context.Context, runID uuid.UUID, record types.ReleaseRecord) error
	CompleteRun(ctx context.Context, runID uuid.UUID, summary *types.RunSummary) error
}
