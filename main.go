package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-backend/cache"
	"catalog-backend/config"
	"catalog-backend/database"
	"catalog-backend/firebase"
	"catalog-backend/handlers"
	"catalog-backend/importer"
	"catalog-backend/logger"
	"catalog-backend/middleware"
	"catalog-backend/queue"
	"catalog-backend/routes"
	"catalog-backend/utils"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := config.LoadEnv(); err != nil {
		logrus.Fatal("Error loading .env file: ", err)
	}

	// Validate critical environment variables
	if err := config.ValidateEnv(); err != nil {
		logrus.Fatal("Environment validation failed: ", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Invalid configuration: ", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	entry := logrus.NewEntry(log).WithField("service", "catalog-backend")

	// Background work lives until shutdown, independent of any request.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// Initialize database
	db, err := database.Connect(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	// Run migrations
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	created, err := database.CreateDefaultWarehouse(db, cfg.DefaultWarehouseName, cfg.DefaultWarehouseCode)
	if err != nil {
		log.WithError(err).Warn("Could not create default warehouse")
	} else if created {
		log.WithField("code", cfg.DefaultWarehouseCode).Info("Default warehouse created")
	}

	gormJobs := importer.NewGormJobStore(db)
	var jobs importer.JobStore = gormJobs
	if cfg.JobStore == config.StoreMemory {
		memory := utils.NewJobStore(cfg.JobRetention)
		go memory.RunJanitor(bgCtx, time.Hour)
		jobs = memory
		log.Warn("Import jobs are kept in memory and will not survive a restart")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(bgCtx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, serving import jobs without cache")
			redisClient = nil
		} else {
			jobs = cache.NewCachedJobStore(jobs, redisClient, cfg.CacheTTL, entry.WithField("component", "job_cache"))
			log.Info("Import job cache enabled")
		}
	}

	var images importer.ImageRehoster
	if cfg.RehostImages && cfg.FirebaseBucket != "" {
		app, err := firebase.NewApp(bgCtx, cfg.FirebaseCredentials)
		if err != nil {
			log.WithError(err).Warn("Firebase unavailable, keeping source image URLs")
		} else if rehoster, err := firebase.NewRehoster(bgCtx, app, cfg.FirebaseBucket, entry.WithField("component", "images")); err != nil {
			log.WithError(err).Warn("Storage bucket unavailable, keeping source image URLs")
		} else {
			images = rehoster
			log.WithField("bucket", cfg.FirebaseBucket).Info("Image rehosting enabled")
		}
	}

	rows := importer.NewRowImporter(
		importer.NewResolver(db),
		importer.NewUpserter(db, images, entry.WithField("component", "upserter")),
	)
	orchestrator := importer.NewOrchestrator(jobs, rows, gormJobs, entry.WithField("component", "orchestrator"))
	orchestrator.Timing.PausePollInterval = cfg.PausePollInterval

	var (
		runner    importer.JobRunner
		localRun  *importer.LocalRunner
		amqpConn  *amqp.Connection
		consumers []*queue.Consumer
	)
	if cfg.JobRunner == config.RunnerRabbitMQ && cfg.RabbitMQURL != "" {
		amqpConn, err = amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ: ", err)
		}
		publisher, err := queue.NewRabbitRunner(amqpConn, cfg.ImportExchange, cfg.ImportRoutingKey)
		if err != nil {
			log.Fatal("Failed to set up import publisher: ", err)
		}
		runner = publisher

		for i := 0; i < cfg.MaxConcurrentJobs; i++ {
			consumer, err := queue.NewConsumer(amqpConn, cfg.ImportExchange, cfg.ImportRoutingKey, cfg.ImportQueue,
				orchestrator, entry.WithFields(logrus.Fields{"component": "consumer", "worker": i}))
			if err != nil {
				log.Fatal("Failed to set up import consumer: ", err)
			}
			consumers = append(consumers, consumer)
			go func() {
				if err := consumer.Start(bgCtx); err != nil {
					log.WithError(err).Error("Import consumer stopped")
				}
			}()
		}
		log.WithField("queue", cfg.ImportQueue).Info("Imports run through RabbitMQ")
	} else {
		localRun = importer.NewLocalRunner(orchestrator, cfg.MaxConcurrentJobs, entry.WithField("component", "runner"))
		runner = localRun
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	go limiter.Run(bgCtx, 5*time.Minute)

	importHandler := handlers.NewImportHandler(jobs, runner, entry.WithField("component", "imports"))

	// Setup Gin router
	r := gin.Default()
	if len(cfg.CORSAllowedOrigins) == 0 {
		log.Warn("No CORS origins configured, allowing any origin")
	}
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Setup routes
	routes.SetupRoutes(r, importHandler, limiter, gormJobs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Run server in a goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests and running imports 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if localRun != nil {
		if err := localRun.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("Running imports were interrupted")
		}
	}
	stopBackground()

	for _, consumer := range consumers {
		consumer.Close()
	}
	if amqpConn != nil {
		amqpConn.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, err := db.DB()
	if err == nil {
		if err := sqlDB.Close(); err != nil {
			log.WithError(err).Error("Error closing database connection")
		} else {
			log.Info("Database connection closed")
		}
	}

	log.Info("Server exited gracefully")
}
