package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStore is the part of the job store the orchestrator drives.
type RunStore interface {
	// Start moves a pending job to processing. It reports false when the job was not pending.
	Start(ctx context.Context, id uuid.UUID, total int, mappingConfig []byte) (bool, error)
	GetStatus(ctx context.Context, id uuid.UUID) (string, error)
	// SaveProgress writes counts and logs of a job that is still processing or paused.
	SaveProgress(ctx context.Context, id uuid.UUID, progress dtos.JobProgress) error
	// Finish writes the final snapshot with a terminal status unless the job already ended.
	Finish(ctx context.Context, id uuid.UUID, status string, progress dtos.JobProgress) (bool, error)
}

// JobStore is the durable home of import jobs.
type JobStore interface {
	RunStore
	CreateJob(ctx context.Context, job *models.ImportJob) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]models.ImportJob, int64, error)
	// TransitionStatus applies a client requested status change.
	TransitionStatus(ctx context.Context, id uuid.UUID, to string) error
}

// GormJobStore keeps jobs in the import_jobs table.
type GormJobStore struct {
	DB *gorm.DB
}

func NewGormJobStore(db *gorm.DB) *GormJobStore {
	return &GormJobStore{DB: db}
}

func (s *GormJobStore) CreateJob(ctx context.Context, job *models.ImportJob) error {
	if job.SuccessLog == nil {
		job.SuccessLog = datatypes.JSON("[]")
	}
	if job.ErrorLog == nil {
		job.ErrorLog = datatypes.JSON("[]")
	}
	return s.DB.WithContext(ctx).Create(job).Error
}

func (s *GormJobStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := s.DB.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs newest first without their logs.
func (s *GormJobStore) ListJobs(ctx context.Context, limit, offset int) ([]models.ImportJob, int64, error) {
	db := s.DB.WithContext(ctx).Model(&models.ImportJob{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.ImportJob
	err := db.Omit("success_log", "error_log", "mapping_config").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *GormJobStore) GetStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var job models.ImportJob
	if err := s.DB.WithContext(ctx).Select("status").First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrJobNotFound
		}
		return "", err
	}
	return job.Status, nil
}

func (s *GormJobStore) Start(ctx context.Context, id uuid.UUID, total int, mappingConfig []byte) (bool, error) {
	updates := map[string]interface{}{
		"status":         models.ImportStatusProcessing,
		"total_products": total,
		"started_at":     time.Now(),
	}
	if len(mappingConfig) > 0 {
		updates["mapping_config"] = datatypes.JSON(mappingConfig)
	}

	result := s.DB.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", id, models.ImportStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *GormJobStore) TransitionStatus(ctx context.Context, id uuid.UUID, to string) error {
	current, err := s.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}

	updates := map[string]interface{}{"status": to}
	if models.IsTerminalImportStatus(to) {
		updates["completed_at"] = time.Now()
	}

	// Compare-and-set on the status we validated against.
	result := s.DB.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status = ?", id, current).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
	}
	return nil
}

func (s *GormJobStore) SaveProgress(ctx context.Context, id uuid.UUID, progress dtos.JobProgress) error {
	updates, err := progressColumns(progress)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status IN ?", id, models.ActiveImportStatuses).
		Updates(updates).Error
}

func (s *GormJobStore) Finish(ctx context.Context, id uuid.UUID, status string, progress dtos.JobProgress) (bool, error) {
	if !models.IsTerminalImportStatus(status) {
		return false, fmt.Errorf("finish with non-terminal status %q", status)
	}
	updates, err := progressColumns(progress)
	if err != nil {
		return false, err
	}
	updates["status"] = status
	updates["completed_at"] = time.Now()

	result := s.DB.WithContext(ctx).Model(&models.ImportJob{}).
		Where("id = ? AND status IN ?", id, []string{
			models.ImportStatusPending,
			models.ImportStatusProcessing,
			models.ImportStatusPaused,
		}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Ping checks the underlying database connection.
func (s *GormJobStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func progressColumns(progress dtos.JobProgress) (map[string]interface{}, error) {
	successLog, err := dtos.EncodeOutcomes(progress.SuccessLog)
	if err != nil {
		return nil, fmt.Errorf("encode success log: %w", err)
	}
	errorLog, err := dtos.EncodeOutcomes(progress.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("encode error log: %w", err)
	}
	return map[string]interface{}{
		"processed_products": progress.Processed,
		"success_count":      progress.SuccessCount,
		"error_count":        progress.ErrorCount,
		"success_log":        datatypes.JSON(successLog),
		"error_log":          datatypes.JSON(errorLog),
	}, nil
}
