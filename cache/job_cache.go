package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"catalog-backend/dtos"
	"catalog-backend/importer"
	"catalog-backend/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "import_job:"

// CachedJobStore puts a Redis read-through cache in front of a JobStore.
// Only GetJob is cached. Every write drops the cached entry, and GetStatus
// always reads the underlying store since the orchestrator relies on it.
type CachedJobStore struct {
	importer.JobStore
	Client *redis.Client
	TTL    time.Duration
	Logger *logrus.Entry
}

func NewCachedJobStore(store importer.JobStore, client *redis.Client, ttl time.Duration, logger *logrus.Entry) *CachedJobStore {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CachedJobStore{
		JobStore: store,
		Client:   client,
		TTL:      ttl,
		Logger:   logger,
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func jobKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// GetJob serves the job from Redis when present. Cache faults fall back to the store.
func (c *CachedJobStore) GetJob(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	raw, err := c.Client.Get(ctx, jobKey(id)).Bytes()
	if err == nil {
		var job models.ImportJob
		if err := json.Unmarshal(raw, &job); err == nil {
			return &job, nil
		}
		c.Logger.WithField("job_id", id).Warn("Discarding unreadable cached import job")
	} else if !errors.Is(err, redis.Nil) {
		c.Logger.WithError(err).Warn("Redis read failed")
	}

	job, err := c.JobStore.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(job); err == nil {
		if err := c.Client.Set(ctx, jobKey(id), data, c.TTL).Err(); err != nil {
			c.Logger.WithError(err).Warn("Redis write failed")
		}
	}
	return job, nil
}

func (c *CachedJobStore) Start(ctx context.Context, id uuid.UUID, total int, mappingConfig []byte) (bool, error) {
	started, err := c.JobStore.Start(ctx, id, total, mappingConfig)
	c.invalidate(ctx, id)
	return started, err
}

func (c *CachedJobStore) TransitionStatus(ctx context.Context, id uuid.UUID, to string) error {
	err := c.JobStore.TransitionStatus(ctx, id, to)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedJobStore) SaveProgress(ctx context.Context, id uuid.UUID, progress dtos.JobProgress) error {
	err := c.JobStore.SaveProgress(ctx, id, progress)
	c.invalidate(ctx, id)
	return err
}

func (c *CachedJobStore) Finish(ctx context.Context, id uuid.UUID, status string, progress dtos.JobProgress) (bool, error) {
	finished, err := c.JobStore.Finish(ctx, id, status, progress)
	c.invalidate(ctx, id)
	return finished, err
}

// Ping reports the health of the underlying store when it can tell.
func (c *CachedJobStore) Ping(ctx context.Context) error {
	if hc, ok := c.JobStore.(importer.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

func (c *CachedJobStore) invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.Client.Del(context.WithoutCancel(ctx), jobKey(id)).Err(); err != nil {
		c.Logger.WithError(err).WithField("job_id", id).Warn("Failed to invalidate cached import job")
	}
}
