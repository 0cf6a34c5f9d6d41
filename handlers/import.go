package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/importer"
	"catalog-backend/models"
	"catalog-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ImportHandler serves the bulk product import API.
type ImportHandler struct {
	Jobs   importer.JobStore
	Runner importer.JobRunner
	Logger *logrus.Entry
}

func NewImportHandler(jobs importer.JobStore, runner importer.JobRunner, logger *logrus.Entry) *ImportHandler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ImportHandler{Jobs: jobs, Runner: runner, Logger: logger}
}

// CreateImport registers a pending job before the CSV is submitted.
func (h *ImportHandler) CreateImport(c *gin.Context) {
	var req dtos.CreateImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	job := &models.ImportJob{
		FileName:      req.FileName,
		TotalProducts: req.TotalProducts,
		Status:        models.ImportStatusPending,
	}
	if err := h.Jobs.CreateJob(c.Request.Context(), job); err != nil {
		h.Logger.WithError(err).Error("Failed to create import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create import job"})
		return
	}

	resp, err := dtos.NewImportJobResponse(job, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read import job"})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ImportHandler) ListImports(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	jobs, total, err := h.Jobs.ListJobs(c.Request.Context(), limit, (page-1)*limit)
	if err != nil {
		h.Logger.WithError(err).Error("Failed to list import jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import jobs"})
		return
	}

	items := make([]dtos.ImportJobResponse, 0, len(jobs))
	for i := range jobs {
		resp, _ := dtos.NewImportJobResponse(&jobs[i], false)
		items = append(items, resp)
	}

	c.JSON(http.StatusOK, dtos.ImportJobListResponse{
		Jobs:  items,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ProcessImport validates the submitted CSV and configuration, moves the job
// to processing and hands it to the runner. It answers before any row is imported.
func (h *ImportHandler) ProcessImport(c *gin.Context) {
	id, ok := parseImportID(c)
	if !ok {
		return
	}

	var req dtos.ProcessImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}
	if req.ImportID != "" && req.ImportID != id.String() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "importId does not match the URL"})
		return
	}

	cfg, err := importer.NewConfig(req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	encoded, err := cfg.Encode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode import configuration"})
		return
	}

	ctx := c.Request.Context()
	log := h.Logger.WithField("job_id", id)

	started, err := h.Jobs.Start(ctx, id, len(req.CSVData.Rows), encoded)
	if err != nil {
		log.WithError(err).Error("Failed to start import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start import job"})
		return
	}
	if !started {
		h.respondNotStartable(c, id)
		return
	}

	fileName := req.CSVData.FileName
	task := importer.Task{
		JobID:    id,
		FileName: fileName,
		Headers:  req.CSVData.Headers,
		Rows:     req.CSVData.Rows,
		Config:   cfg,
	}

	if err := h.Runner.Enqueue(ctx, task); err != nil {
		log.WithError(err).Error("Failed to enqueue import job")
		progress := dtos.JobProgress{ErrorLog: []dtos.RowOutcome{{
			Product: "Sistema",
			Error:   "Falha Geral",
			Details: err.Error(),
		}}}
		if _, ferr := h.Jobs.Finish(ctx, id, models.ImportStatusFailed, progress); ferr != nil {
			log.WithError(ferr).Error("Failed to record enqueue failure")
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Import could not be scheduled"})
		return
	}

	log.WithFields(logrus.Fields{
		"rows": len(task.Rows),
		"file": fileName,
	}).Info("Import accepted")
	c.JSON(http.StatusAccepted, dtos.ProcessImportResponse{Success: true, ImportID: id})
}

func (h *ImportHandler) respondNotStartable(c *gin.Context, id uuid.UUID) {
	status, err := h.Jobs.GetStatus(c.Request.Context(), id)
	switch {
	case errors.Is(err, importer.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read import job"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "Import job is already " + status})
	}
}

func (h *ImportHandler) GetImport(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	resp, err := dtos.NewImportJobResponse(job, true)
	if err != nil {
		h.Logger.WithError(err).WithField("job_id", job.ID).Error("Corrupt import job logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read import job"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateImportStatus applies a client requested cancel, pause or resume.
func (h *ImportHandler) UpdateImportStatus(c *gin.Context) {
	id, ok := parseImportID(c)
	if !ok {
		return
	}

	var req dtos.UpdateImportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": utils.SanitizeValidationError(err)})
		return
	}

	err := h.Jobs.TransitionStatus(c.Request.Context(), id, req.Status)
	switch {
	case errors.Is(err, importer.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		return
	case errors.Is(err, importer.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.Logger.WithError(err).WithField("job_id", id).Error("Failed to update import status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update import status"})
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"job_id": id,
		"status": req.Status,
	}).Info("Import status changed")

	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	resp, _ := dtos.NewImportJobResponse(job, false)
	c.JSON(http.StatusOK, resp)
}

func (h *ImportHandler) loadJob(c *gin.Context) (*models.ImportJob, bool) {
	id, ok := parseImportID(c)
	if !ok {
		return nil, false
	}

	job, err := h.Jobs.GetJob(c.Request.Context(), id)
	if errors.Is(err, importer.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		return nil, false
	}
	if err != nil {
		h.Logger.WithError(err).WithField("job_id", id).Error("Failed to fetch import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch import job"})
		return nil, false
	}
	return job, true
}

func parseImportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid import ID"})
		return uuid.Nil, false
	}
	return id, true
}

func exportFileName(id uuid.UUID, ext string) string {
	return "importacao_" + id.String()[:8] + "_erros_" + time.Now().Format("20060102") + "." + ext
}
