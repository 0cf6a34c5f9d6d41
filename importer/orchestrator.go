package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// MaxBatchAttempts bounds how often a batch is retried after a batch-level fault.
	MaxBatchAttempts = 3

	// progressFlushEvery persists progress whenever the processed count is a multiple of it.
	progressFlushEvery = 3

	batchFailedMessage = "Lote falhou após múltiplas tentativas"
	rowFailedMessage   = "Erro ao processar linha"
	rowPanicMessage    = "Erro inesperado ao processar linha"
)

// Task is one import run handed to a JobRunner.
type Task struct {
	JobID    uuid.UUID  `json:"job_id"`
	FileName string     `json:"file_name"`
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
	Config   Config     `json:"config"`
}

// RowProcessor imports a single CSV row.
type RowProcessor interface {
	ImportRow(ctx context.Context, headers []string, row []string, cfg Config) (UpsertResult, error)
}

// HealthChecker is consulted before each batch attempt. A failing check is
// treated as a batch-level fault and retried.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Timing holds the orchestrator's waits.
type Timing struct {
	RetryBackoff      time.Duration // multiplied by the attempt number
	InterBatchDelay   func(totalRows int) time.Duration
	PausePollInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		RetryBackoff:      time.Second,
		InterBatchDelay:   InterBatchDelay,
		PausePollInterval: 2 * time.Second,
	}
}

// BatchSize picks the batch width from the total row count.
func BatchSize(totalRows int) int {
	switch {
	case totalRows > 500:
		return 25
	case totalRows > 100:
		return 15
	default:
		return 10
	}
}

// InterBatchDelay throttles larger imports harder.
func InterBatchDelay(totalRows int) time.Duration {
	switch {
	case totalRows > 1000:
		return 200 * time.Millisecond
	case totalRows > 500:
		return 150 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// Orchestrator runs an import job: rows are split into batches that run one
// after another, and the rows of a batch run concurrently.
type Orchestrator struct {
	Jobs     RunStore
	Rows     RowProcessor
	Health   HealthChecker // optional
	Timing   Timing
	Logger   *logrus.Entry
	reporter *Reporter
}

func NewOrchestrator(jobs RunStore, rows RowProcessor, health HealthChecker, logger *logrus.Entry) *Orchestrator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		Jobs:     jobs,
		Rows:     rows,
		Health:   health,
		Timing:   DefaultTiming(),
		Logger:   logger,
		reporter: NewReporter(jobs),
	}
}

type rowResult struct {
	outcome dtos.RowOutcome
	ok      bool
}

// runState accumulates the in-memory snapshot that the reporter persists.
type runState struct {
	progress dtos.JobProgress
}

func (s *runState) record(r rowResult) {
	s.progress.Processed++
	if r.ok {
		s.progress.SuccessCount++
		s.progress.SuccessLog = append(s.progress.SuccessLog, r.outcome)
		return
	}
	s.progress.ErrorCount++
	s.progress.ErrorLog = append(s.progress.ErrorLog, r.outcome)
}

// Run processes task to a terminal state. A cancelled job stops at the next
// batch boundary and a paused job waits there until it is resumed. Any error
// that escapes the batch loop ends the job as failed.
func (o *Orchestrator) Run(ctx context.Context, task Task) (err error) {
	log := o.Logger.WithFields(logrus.Fields{
		"job_id": task.JobID,
		"file":   task.FileName,
	})
	state := &runState{}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err == nil || errors.Is(err, ErrJobNotRunnable) {
			return
		}
		log.WithError(err).Error("Import failed")
		o.fail(context.WithoutCancel(ctx), task.JobID, state, err, log)
	}()

	if err := o.start(ctx, task); err != nil {
		return err
	}

	total := len(task.Rows)
	size := BatchSize(total)
	batches := (total + size - 1) / size
	log.WithFields(logrus.Fields{
		"rows":       total,
		"batch_size": size,
		"batches":    batches,
	}).Info("Import started")

	if stop, err := o.checkpoint(ctx, task.JobID, log); err != nil || stop {
		return err
	}

	for b := 0; b < batches; b++ {
		start := b * size
		end := start + size
		if end > total {
			end = total
		}
		last := b == batches-1

		if err := o.runBatch(ctx, task, b, start, end, state, log); err != nil {
			return err
		}

		if state.progress.Processed%progressFlushEvery == 0 || last {
			if err := o.reporter.Report(ctx, task.JobID, state.progress); err != nil {
				return fmt.Errorf("persist progress: %w", err)
			}
		}

		if !last {
			if err := sleep(ctx, o.Timing.InterBatchDelay(total)); err != nil {
				return err
			}
		}

		stop, err := o.checkpoint(ctx, task.JobID, log)
		if err != nil {
			return err
		}
		if stop {
			log.WithField("processed", state.progress.Processed).Info("Import stopped at batch boundary")
			return nil
		}
	}

	finished, err := o.reporter.Complete(ctx, task.JobID, state.progress)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !finished {
		log.Warn("Job ended before completion could be recorded")
		return nil
	}

	log.WithFields(logrus.Fields{
		"processed": state.progress.Processed,
		"success":   state.progress.SuccessCount,
		"errors":    state.progress.ErrorCount,
	}).Info("Import completed")
	return nil
}

// start moves the job to processing. A job the submitter already started is accepted as is.
func (o *Orchestrator) start(ctx context.Context, task Task) error {
	cfg, err := task.Config.Encode()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	started, err := o.Jobs.Start(ctx, task.JobID, len(task.Rows), cfg)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if started {
		return nil
	}

	status, err := o.Jobs.GetStatus(ctx, task.JobID)
	if errors.Is(err, ErrJobNotFound) {
		return fmt.Errorf("%w: %v", ErrJobNotRunnable, err)
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}
	switch status {
	case models.ImportStatusProcessing, models.ImportStatusPaused:
		return nil
	}
	return fmt.Errorf("%w: status is %s", ErrJobNotRunnable, status)
}

// checkpoint re-reads the durable status at a batch boundary. It reports
// stop for a job that has ended and blocks while the job is paused.
func (o *Orchestrator) checkpoint(ctx context.Context, jobID uuid.UUID, log *logrus.Entry) (bool, error) {
	paused := false
	for {
		status, err := o.Jobs.GetStatus(ctx, jobID)
		if err != nil {
			return false, fmt.Errorf("read job status: %w", err)
		}

		switch {
		case models.IsTerminalImportStatus(status):
			log.WithField("status", status).Info("Job ended externally")
			return true, nil
		case status == models.ImportStatusPaused:
			if !paused {
				log.Info("Import paused")
				paused = true
			}
			if err := sleep(ctx, o.Timing.PausePollInterval); err != nil {
				return false, err
			}
		default:
			if paused {
				log.Info("Import resumed")
			}
			return false, nil
		}
	}
}

// runBatch attempts the rows [start, end) up to MaxBatchAttempts times. Row
// failures never fail the attempt; only a batch-level fault does.
func (o *Orchestrator) runBatch(ctx context.Context, task Task, batch, start, end int, state *runState, log *logrus.Entry) error {
	log = log.WithField("batch", batch+1)

	var lastErr error
	for attempt := 1; attempt <= MaxBatchAttempts; attempt++ {
		results, err := o.attemptBatch(ctx, task, start, end, attempt)
		if err == nil {
			for _, r := range results {
				state.record(r)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("Batch attempt failed")
		if attempt < MaxBatchAttempts {
			if err := sleep(ctx, o.Timing.RetryBackoff*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}

	log.WithError(lastErr).Error("Batch failed after retries")
	for i := start; i < end; i++ {
		state.record(rowResult{outcome: dtos.RowOutcome{
			Row:          i + 2,
			Product:      ProductName(task.Headers, task.Rows[i], task.Config.Mapping),
			Error:        batchFailedMessage,
			Details:      lastErr.Error(),
			RetryAttempt: MaxBatchAttempts,
		}})
	}
	return nil
}

func (o *Orchestrator) attemptBatch(ctx context.Context, task Task, start, end, attempt int) ([]rowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Health != nil {
		if err := o.Health.Ping(ctx); err != nil {
			return nil, fmt.Errorf("data store unavailable: %w", err)
		}
	}

	results := make([]rowResult, end-start)
	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx-start] = o.processRow(ctx, task, idx, attempt)
		}(i)
	}
	wg.Wait()

	return results, nil
}

func (o *Orchestrator) processRow(ctx context.Context, task Task, idx, attempt int) (res rowResult) {
	row := task.Rows[idx]
	outcome := dtos.RowOutcome{
		Row:     idx + 2,
		Product: ProductName(task.Headers, row, task.Config.Mapping),
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Error = rowPanicMessage
			outcome.Details = fmt.Sprint(r)
			outcome.RetryAttempt = attempt
			res = rowResult{outcome: outcome}
		}
	}()

	result, err := o.Rows.ImportRow(ctx, task.Headers, row, task.Config)
	if err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			outcome.Error = rowErr.Message
			if rowErr.Err != nil {
				outcome.Details = rowErr.Err.Error()
			}
		} else {
			outcome.Error = rowFailedMessage
			outcome.Details = err.Error()
		}
		outcome.RetryAttempt = attempt
		return rowResult{outcome: outcome}
	}

	outcome.Status = result.Status
	return rowResult{outcome: outcome, ok: true}
}

// fail appends the general failure entry and ends the job with whatever was accumulated.
func (o *Orchestrator) fail(ctx context.Context, jobID uuid.UUID, state *runState, cause error, log *logrus.Entry) {
	state.progress.ErrorLog = append(state.progress.ErrorLog, dtos.RowOutcome{
		Product: "Sistema",
		Error:   "Falha Geral",
		Details: cause.Error(),
	})
	if _, err := o.reporter.Fail(ctx, jobID, state.progress); err != nil {
		log.WithError(err).Error("Failed to record job failure")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
