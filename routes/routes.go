package routes

import (
	"net/http"

	"catalog-backend/handlers"
	"catalog-backend/importer"
	"catalog-backend/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the import API. limiter guards the process endpoint
// and health, when set, backs /health.
func SetupRoutes(r *gin.Engine, imports *handlers.ImportHandler, limiter *middleware.RateLimiter, health importer.HealthChecker) {
	api := r.Group("/api")

	// Admin routes (require admin role)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		admin.POST("/imports", imports.CreateImport)
		admin.GET("/imports", imports.ListImports)
		admin.GET("/imports/template", imports.DownloadTemplate)
		admin.GET("/imports/:id", imports.GetImport)
		admin.PATCH("/imports/:id/status", imports.UpdateImportStatus)
		admin.GET("/imports/:id/errors", imports.ExportErrors)

		if limiter != nil {
			admin.POST("/imports/:id/process", limiter.Middleware(), imports.ProcessImport)
		} else {
			admin.POST("/imports/:id/process", imports.ProcessImport)
		}
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		if health != nil {
			if err := health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
