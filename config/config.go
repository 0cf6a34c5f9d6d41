package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Job runner and store selections.
const (
	RunnerLocal    = "local"
	RunnerRabbitMQ = "rabbitmq"

	StoreDatabase = "database"
	StoreMemory   = "memory"
)

// Config is the typed process configuration.
type Config struct {
	Port string

	DBDriver    string
	DatabaseURL string

	RedisURL         string
	CacheTTL         time.Duration
	RabbitMQURL      string
	ImportExchange   string
	ImportQueue      string
	ImportRoutingKey string

	JobRunner         string
	JobStore          string
	MaxConcurrentJobs int
	JobRetention      time.Duration
	PausePollInterval time.Duration

	CORSAllowedOrigins []string
	RateLimitPerMinute int

	JWTSecret string

	LogLevel  string
	LogFormat string

	RehostImages        bool
	FirebaseBucket      string
	FirebaseCredentials string

	DefaultWarehouseName string
	DefaultWarehouseCode string
}

func LoadEnv() error {
	// A missing .env file is fine; production sets variables directly.
	_ = godotenv.Load()
	return nil
}

// ValidateEnv checks that critical environment variables are set.
// Returns an error if any critical variable is missing.
func ValidateEnv() error {
	var missing []string

	if os.Getenv("JWT_SECRET") == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if GetEnv("DB_DRIVER", "postgres") != "sqlite" && os.Getenv("DATABASE_URL") == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	// Non-critical variables - log warnings but don't fail
	if GetEnvBool("IMPORT_REHOST_IMAGES", false) {
		if os.Getenv("FIREBASE_STORAGE_BUCKET") == "" {
			logrus.Warn("FIREBASE_STORAGE_BUCKET not set - image rehosting will be disabled")
		}
		if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			logrus.Warn("GOOGLE_APPLICATION_CREDENTIALS not set - using default credentials")
		}
	}
	if os.Getenv("REDIS_URL") == "" {
		logrus.Warn("REDIS_URL not set - job projections will not be cached")
	}
	if GetEnv("JOB_RUNNER", RunnerLocal) == RunnerRabbitMQ && os.Getenv("RABBITMQ_URL") == "" {
		logrus.Warn("RABBITMQ_URL not set - falling back to the local job runner")
	}

	return nil
}

// Load reads the typed configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 GetEnv("PORT", "8080"),
		DBDriver:             GetEnv("DB_DRIVER", "postgres"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		RabbitMQURL:          os.Getenv("RABBITMQ_URL"),
		ImportExchange:       GetEnv("IMPORT_EXCHANGE", "catalog.imports"),
		ImportQueue:          GetEnv("IMPORT_QUEUE", "catalog.imports.run"),
		ImportRoutingKey:     GetEnv("IMPORT_ROUTING_KEY", "import.run"),
		JobRunner:            GetEnv("JOB_RUNNER", RunnerLocal),
		JobStore:             GetEnv("JOB_STORE", StoreDatabase),
		CORSAllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		LogLevel:             GetEnv("LOG_LEVEL", "info"),
		LogFormat:            GetEnv("LOG_FORMAT", "text"),
		RehostImages:         GetEnvBool("IMPORT_REHOST_IMAGES", false),
		FirebaseBucket:       os.Getenv("FIREBASE_STORAGE_BUCKET"),
		FirebaseCredentials:  os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		DefaultWarehouseName: GetEnv("DEFAULT_WAREHOUSE_NAME", "Depósito Principal"),
		DefaultWarehouseCode: GetEnv("DEFAULT_WAREHOUSE_CODE", "MAIN"),
	}

	var err error
	if cfg.MaxConcurrentJobs, err = getEnvInt("IMPORT_MAX_CONCURRENT_JOBS", 2); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("IMPORT_RATE_LIMIT_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.JobRetention, err = getEnvDuration("JOB_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PausePollInterval, err = getEnvDuration("IMPORT_PAUSE_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	switch cfg.JobRunner {
	case RunnerLocal, RunnerRabbitMQ:
	default:
		return nil, fmt.Errorf("JOB_RUNNER must be %s or %s, got %q", RunnerLocal, RunnerRabbitMQ, cfg.JobRunner)
	}
	switch cfg.JobStore {
	case StoreDatabase, StoreMemory:
	default:
		return nil, fmt.Errorf("JOB_STORE must be %s or %s, got %q", StoreDatabase, StoreMemory, cfg.JobStore)
	}
	if cfg.JobStore == StoreMemory && cfg.JobRunner == RunnerRabbitMQ {
		return nil, fmt.Errorf("JOB_STORE=memory cannot be shared with JOB_RUNNER=rabbitmq")
	}
	if cfg.MaxConcurrentJobs < 1 {
		return nil, fmt.Errorf("IMPORT_MAX_CONCURRENT_JOBS must be at least 1")
	}

	return cfg, nil
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
