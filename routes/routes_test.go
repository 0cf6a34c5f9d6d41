package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"catalog-backend/handlers"
	"catalog-backend/importer"
	"catalog-backend/middleware"
	"catalog-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "test-secret-key-for-unit-tests")
}

type nopRunner struct{}

func (nopRunner) Enqueue(context.Context, importer.Task) error { return nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupRouter(limiter *middleware.RateLimiter, health importer.HealthChecker) *gin.Engine {
	store := utils.NewJobStore(time.Hour)
	h := handlers.NewImportHandler(store, nopRunner{}, nil)
	r := gin.New()
	SetupRoutes(r, h, limiter, health)
	return r
}

func request(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := request(setupRouter(nil, nil), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthCheckReportsDatabaseDown(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := request(setupRouter(nil, down), "GET", "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestImportRoutesRequireAuth(t *testing.T) {
	w := request(setupRouter(nil, nil), "GET", "/api/admin/imports", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestImportRoutesBlockNonAdmin(t *testing.T) {
	token, _ := utils.GenerateToken(uuid.New(), "user@test.com", "operator", time.Hour)

	w := request(setupRouter(nil, nil), "GET", "/api/admin/imports", token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestImportRoutesRegistered(t *testing.T) {
	r := setupRouter(nil, nil)
	token, _ := utils.GenerateToken(uuid.New(), "admin@test.com", "admin", time.Hour)

	if w := request(r, "GET", "/api/admin/imports", token); w.Code != http.StatusOK {
		t.Errorf("list: expected 200, got %d", w.Code)
	}
	if w := request(r, "GET", "/api/admin/imports/template", token); w.Code != http.StatusOK {
		t.Errorf("template: expected 200, got %d", w.Code)
	}
	if w := request(r, "GET", "/api/admin/imports/"+uuid.New().String(), token); w.Code != http.StatusNotFound {
		t.Errorf("get: expected 404, got %d", w.Code)
	}
}

func TestProcessRouteIsRateLimited(t *testing.T) {
	r := setupRouter(middleware.NewRateLimiter(1, time.Minute), nil)
	token, _ := utils.GenerateToken(uuid.New(), "admin@test.com", "admin", time.Hour)
	path := "/api/admin/imports/" + uuid.New().String() + "/process"

	if w := request(r, "POST", path, token); w.Code == http.StatusTooManyRequests {
		t.Fatal("first request must not be rate limited")
	}
	if w := request(r, "POST", path, token); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
