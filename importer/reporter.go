package importer

import (
	"context"

	"catalog-backend/dtos"
	"catalog-backend/models"

	"github.com/google/uuid"
)

// Reporter persists the orchestrator's running snapshot. Every call writes
// the full logs; calling it again with the same or a longer snapshot is safe.
type Reporter struct {
	Store RunStore
}

func NewReporter(store RunStore) *Reporter {
	return &Reporter{Store: store}
}

// Report writes processed, success and error counts together with both logs.
func (r *Reporter) Report(ctx context.Context, jobID uuid.UUID, progress dtos.JobProgress) error {
	return r.Store.SaveProgress(ctx, jobID, progress)
}

// Complete ends the job as completed. It reports false if the job had already ended.
func (r *Reporter) Complete(ctx context.Context, jobID uuid.UUID, progress dtos.JobProgress) (bool, error) {
	return r.Store.Finish(ctx, jobID, models.ImportStatusCompleted, progress)
}

// Fail ends the job as failed. It reports false if the job had already ended.
func (r *Reporter) Fail(ctx context.Context, jobID uuid.UUID, progress dtos.JobProgress) (bool, error) {
	return r.Store.Finish(ctx, jobID, models.ImportStatusFailed, progress)
}
