package utils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/importer"
	"catalog-backend/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobStore keeps import jobs in memory. It backs JOB_STORE=memory for local
// runs; jobs do not survive a restart.
type JobStore struct {
	jobs      map[uuid.UUID]*models.ImportJob
	mu        sync.RWMutex
	retention time.Duration
}

func NewJobStore(retention time.Duration) *JobStore {
	return &JobStore{
		jobs:      make(map[uuid.UUID]*models.ImportJob),
		retention: retention,
	}
}

// CleanupOldJobs removes finished jobs older than the retention window.
func (js *JobStore) CleanupOldJobs() int {
	js.mu.Lock()
	defer js.mu.Unlock()

	cutoff := time.Now().Add(-js.retention)
	removed := 0
	for id, job := range js.jobs {
		if job.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(js.jobs, id)
			removed++
		}
	}
	return removed
}

// RunJanitor calls CleanupOldJobs every interval until ctx is done.
func (js *JobStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			js.CleanupOldJobs()
		}
	}
}

func (js *JobStore) CreateJob(_ context.Context, job *models.ImportJob) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if _, exists := js.jobs[job.ID]; exists {
		return fmt.Errorf("import job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = models.ImportStatusPending
	}
	if job.SuccessLog == nil {
		job.SuccessLog = datatypes.JSON("[]")
	}
	if job.ErrorLog == nil {
		job.ErrorLog = datatypes.JSON("[]")
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	js.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob returns a copy of the job; callers cannot mutate stored state.
func (js *JobStore) GetJob(_ context.Context, id uuid.UUID) (*models.ImportJob, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[id]
	if !exists {
		return nil, importer.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (js *JobStore) ListJobs(_ context.Context, limit, offset int) ([]models.ImportJob, int64, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]models.ImportJob, 0, len(js.jobs))
	for _, job := range js.jobs {
		summary := *job
		summary.MappingConfig = nil
		summary.SuccessLog = nil
		summary.ErrorLog = nil
		jobs = append(jobs, summary)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	total := int64(len(jobs))
	if offset >= len(jobs) {
		return []models.ImportJob{}, total, nil
	}
	end := len(jobs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return jobs[offset:end], total, nil
}

func (js *JobStore) GetStatus(_ context.Context, id uuid.UUID) (string, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[id]
	if !exists {
		return "", importer.ErrJobNotFound
	}
	return job.Status, nil
}

func (js *JobStore) Start(_ context.Context, id uuid.UUID, total int, mappingConfig []byte) (bool, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[id]
	if !exists || job.Status != models.ImportStatusPending {
		return false, nil
	}
	now := time.Now()
	job.Status = models.ImportStatusProcessing
	job.TotalProducts = total
	job.StartedAt = &now
	job.UpdatedAt = now
	if len(mappingConfig) > 0 {
		job.MappingConfig = append(datatypes.JSON(nil), mappingConfig...)
	}
	return true, nil
}

func (js *JobStore) TransitionStatus(_ context.Context, id uuid.UUID, to string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[id]
	if !exists {
		return importer.ErrJobNotFound
	}
	if !importer.CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s -> %s", importer.ErrInvalidTransition, job.Status, to)
	}
	now := time.Now()
	job.Status = to
	job.UpdatedAt = now
	if job.IsTerminal() {
		job.CompletedAt = &now
	}
	return nil
}

func (js *JobStore) SaveProgress(_ context.Context, id uuid.UUID, progress dtos.JobProgress) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[id]
	if !exists || (job.Status != models.ImportStatusProcessing && job.Status != models.ImportStatusPaused) {
		return nil
	}
	return applyProgress(job, progress)
}

func (js *JobStore) Finish(_ context.Context, id uuid.UUID, status string, progress dtos.JobProgress) (bool, error) {
	if !models.IsTerminalImportStatus(status) {
		return false, fmt.Errorf("finish with non-terminal status %q", status)
	}

	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[id]
	if !exists || job.IsTerminal() {
		return false, nil
	}
	if err := applyProgress(job, progress); err != nil {
		return false, err
	}
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	return true, nil
}

func applyProgress(job *models.ImportJob, progress dtos.JobProgress) error {
	successLog, err := dtos.EncodeOutcomes(progress.SuccessLog)
	if err != nil {
		return err
	}
	errorLog, err := dtos.EncodeOutcomes(progress.ErrorLog)
	if err != nil {
		return err
	}
	job.ProcessedProducts = progress.Processed
	job.SuccessCount = progress.SuccessCount
	job.ErrorCount = progress.ErrorCount
	job.SuccessLog = successLog
	job.ErrorLog = errorLog
	job.UpdatedAt = time.Now()
	return nil
}

func cloneJob(job *models.ImportJob) *models.ImportJob {
	clone := *job
	clone.MappingConfig = append(datatypes.JSON(nil), job.MappingConfig...)
	clone.SuccessLog = append(datatypes.JSON(nil), job.SuccessLog...)
	clone.ErrorLog = append(datatypes.JSON(nil), job.ErrorLog...)
	return &clone
}
