package dtos

import (
	"encoding/json"
	"time"

	"catalog-backend/models"

	"github.com/google/uuid"
)

// RowOutcome is one entry of an import job's success or error log.
type RowOutcome struct {
	Row          int    `json:"row"`               // Line number in the CSV file (header is line 1)
	Product      string `json:"product"`           // Best-effort product name
	Status       string `json:"status,omitempty"`  // Set on success entries
	Error        string `json:"error,omitempty"`   // Set on failure entries
	Details      string `json:"details,omitempty"` // Underlying error message
	RetryAttempt int    `json:"retry_attempt,omitempty"`
}

// JobProgress is the full running snapshot the orchestrator persists.
type JobProgress struct {
	Processed    int
	SuccessCount int
	ErrorCount   int
	SuccessLog   []RowOutcome
	ErrorLog     []RowOutcome
}

// CreateImportRequest pre-creates a pending job before the CSV is submitted.
type CreateImportRequest struct {
	FileName      string `json:"file_name" binding:"required,max=255"`
	TotalProducts int    `json:"total_products" binding:"min=0"`
}

// CSVData is the parsed CSV as sent by the admin UI.
type CSVData struct {
	Headers   []string   `json:"headers" binding:"required,min=1"`
	Rows      [][]string `json:"rows" binding:"required"`
	FileName  string     `json:"fileName"`
	TotalRows int        `json:"totalRows"`
}

// ImportConfig is the user-chosen configuration of an import run.
// Mapping goes from CSV header to target field; null or "ignore" leaves a column unmapped.
type ImportConfig struct {
	Mapping           map[string]*string `json:"mapping" binding:"required"`
	DuplicateHandling string             `json:"duplicateHandling" binding:"required,oneof=skip update error"`
	CategoryCreation  bool               `json:"categoryCreation"`
	MaterialCreation  bool               `json:"materialCreation"`
}

// ProcessImportRequest starts processing of a pre-created job.
type ProcessImportRequest struct {
	ImportID string       `json:"importId"`
	CSVData  CSVData      `json:"csvData"`
	Config   ImportConfig `json:"config"`
}

type ProcessImportResponse struct {
	Success  bool      `json:"success"`
	ImportID uuid.UUID `json:"importId"`
}

type UpdateImportStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=cancelled paused processing"`
}

// ImportJobResponse is the projection of an ImportJob returned to pollers.
type ImportJobResponse struct {
	ID                uuid.UUID       `json:"id"`
	FileName          string          `json:"filename"`
	Status            string          `json:"status"`
	TotalProducts     int             `json:"total_products"`
	ProcessedProducts int             `json:"processed_products"`
	SuccessCount      int             `json:"success_count"`
	ErrorCount        int             `json:"error_count"`
	MappingConfig     json.RawMessage `json:"mapping_config,omitempty"`
	SuccessLog        []RowOutcome    `json:"success_log,omitempty"`
	ErrorLog          []RowOutcome    `json:"error_log,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type ImportJobListResponse struct {
	Jobs  []ImportJobResponse `json:"jobs"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// NewImportJobResponse builds the projection of job. Logs are decoded only when withLogs is set.
func NewImportJobResponse(job *models.ImportJob, withLogs bool) (ImportJobResponse, error) {
	resp := ImportJobResponse{
		ID:                job.ID,
		FileName:          job.FileName,
		Status:            job.Status,
		TotalProducts:     job.TotalProducts,
		ProcessedProducts: job.ProcessedProducts,
		SuccessCount:      job.SuccessCount,
		ErrorCount:        job.ErrorCount,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
	if !withLogs {
		return resp, nil
	}

	if len(job.MappingConfig) > 0 {
		resp.MappingConfig = json.RawMessage(job.MappingConfig)
	}
	var err error
	if resp.SuccessLog, err = DecodeOutcomes(job.SuccessLog); err != nil {
		return resp, err
	}
	if resp.ErrorLog, err = DecodeOutcomes(job.ErrorLog); err != nil {
		return resp, err
	}
	return resp, nil
}

// DecodeOutcomes reads a stored log column. An empty column is an empty log.
func DecodeOutcomes(raw []byte) ([]RowOutcome, error) {
	outcomes := []RowOutcome{}
	if len(raw) == 0 || string(raw) == "null" {
		return outcomes, nil
	}
	if err := json.Unmarshal(raw, &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// EncodeOutcomes serializes a log for storage; nil encodes as an empty array.
func EncodeOutcomes(outcomes []RowOutcome) ([]byte, error) {
	if outcomes == nil {
		outcomes = []RowOutcome{}
	}
	return json.Marshal(outcomes)
}
