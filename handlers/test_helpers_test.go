package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"catalog-backend/database"
	"catalog-backend/importer"
	"catalog-backend/middleware"
	"catalog-backend/models"
	"catalog-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "test-secret-key-for-unit-tests")

	var err error
	testDB, err = database.Connect("sqlite", "file::memory:?cache=shared")
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := database.Migrate(testDB); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	os.Exit(code)
}

// freshDB returns a clean database with one active warehouse.
func freshDB() *gorm.DB {
	database.ResetSQLiteData(testDB)
	if _, err := database.CreateDefaultWarehouse(testDB, "Depósito Principal", "MAIN"); err != nil {
		panic("failed to seed warehouse: " + err.Error())
	}
	return testDB
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// syncRunner runs the task before Enqueue returns so tests can assert on the final job.
type syncRunner struct {
	orchestrator *importer.Orchestrator
}

func (r *syncRunner) Enqueue(ctx context.Context, task importer.Task) error {
	return r.orchestrator.Run(ctx, task)
}

// recordingRunner only remembers what was enqueued.
type recordingRunner struct {
	tasks []importer.Task
	err   error
}

func (r *recordingRunner) Enqueue(_ context.Context, task importer.Task) error {
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func newTestOrchestrator(db *gorm.DB, store importer.RunStore) *importer.Orchestrator {
	logger := quietLogger()
	rows := importer.NewRowImporter(importer.NewResolver(db), importer.NewUpserter(db, nil, logger))
	o := importer.NewOrchestrator(store, rows, nil, logger)
	o.Timing = importer.Timing{
		RetryBackoff:      time.Millisecond,
		InterBatchDelay:   func(int) time.Duration { return 0 },
		PausePollInterval: time.Millisecond,
	}
	return o
}

// setupImportRouter wires the import routes on the given runner. A nil runner
// runs imports synchronously through a real orchestrator.
func setupImportRouter(db *gorm.DB, runner importer.JobRunner) (*gin.Engine, importer.JobStore) {
	store := importer.NewGormJobStore(db)
	if runner == nil {
		runner = &syncRunner{orchestrator: newTestOrchestrator(db, store)}
	}
	h := NewImportHandler(store, runner, quietLogger())

	r := gin.New()
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	imports := admin.Group("/imports")
	imports.POST("", h.CreateImport)
	imports.GET("", h.ListImports)
	imports.GET("/template", h.DownloadTemplate)
	imports.GET("/:id", h.GetImport)
	imports.POST("/:id/process", h.ProcessImport)
	imports.PATCH("/:id/status", h.UpdateImportStatus)
	imports.GET("/:id/errors", h.ExportErrors)
	return r, store
}

func adminToken() string {
	token, err := utils.GenerateToken(uuid.New(), "admin@test.com", "admin", time.Hour)
	if err != nil {
		panic(err)
	}
	return token
}

func seedImportJob(db *gorm.DB, status string) models.ImportJob {
	job := models.ImportJob{
		FileName:   "produtos.csv",
		Status:     status,
		SuccessLog: []byte("[]"),
		ErrorLog:   []byte("[]"),
	}
	if err := db.Create(&job).Error; err != nil {
		panic("failed to seed import job: " + err.Error())
	}
	return job
}

// jsonRequest creates an HTTP request with JSON body.
func jsonRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// authRequest creates an HTTP request with JSON body and Authorization header.
func authRequest(method, url string, body interface{}, token string) *http.Request {
	req := jsonRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// parseResponse reads the response body into a map.
func parseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}
