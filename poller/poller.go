package poller

import (
	"context"
	"fmt"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval             = 2 * time.Second
	DefaultMaxConsecutiveErrors = 5
)

// Update is delivered to the watcher after every successful fetch.
type Update struct {
	Job     *dtos.ImportJobResponse
	Metrics Metrics
}

// Poller follows a job until it reaches a terminal status.
type Poller struct {
	Source               JobStatusSource
	Interval             time.Duration
	MaxConsecutiveErrors int
	Logger               *logrus.Entry

	now func() time.Time
}

func New(source JobStatusSource, interval time.Duration, logger *logrus.Entry) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Poller{
		Source:               source,
		Interval:             interval,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		Logger:               logger,
		now:                  time.Now,
	}
}

// Watch fetches the job immediately and then once per interval, calling
// onUpdate each time, until the job is completed, failed or cancelled. It
// returns the last projection seen. Fetch errors are tolerated until
// MaxConsecutiveErrors of them occur in a row.
func (p *Poller) Watch(ctx context.Context, id uuid.UUID, onUpdate func(Update)) (*dtos.ImportJobResponse, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var last *dtos.ImportJobResponse
	failures := 0

	for {
		job, err := p.Source.FetchJob(ctx, id)
		switch {
		case err != nil && ctx.Err() != nil:
			return last, ctx.Err()
		case err != nil:
			failures++
			p.Logger.WithError(err).WithFields(logrus.Fields{
				"job_id":   id,
				"failures": failures,
			}).Warn("Failed to fetch import job")
			if failures >= p.MaxConsecutiveErrors {
				return last, fmt.Errorf("giving up after %d failed polls: %w", failures, err)
			}
		default:
			failures = 0
			last = job
			if onUpdate != nil {
				onUpdate(Update{Job: job, Metrics: ComputeMetrics(job, p.now())})
			}
			if models.IsTerminalImportStatus(job.Status) {
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Controls are the user actions on a running import.
type Controls struct {
	Controller JobController
}

// CancelImport is best effort: a batch already in flight still finishes.
func (c Controls) CancelImport(ctx context.Context, id uuid.UUID) error {
	return c.Controller.SetStatus(ctx, id, models.ImportStatusCancelled)
}

// PauseImport holds the job at its next batch boundary.
func (c Controls) PauseImport(ctx context.Context, id uuid.UUID) error {
	return c.Controller.SetStatus(ctx, id, models.ImportStatusPaused)
}

func (c Controls) ResumeImport(ctx context.Context, id uuid.UUID) error {
	return c.Controller.SetStatus(ctx, id, models.ImportStatusProcessing)
}
