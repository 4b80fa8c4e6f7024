package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "jobs:"

// RedisConfig configures the Redis connection backing RedisStore.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore shares job statuses between API instances, so a callback
// received by one instance is visible to a poll served by another.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	log.Infof("Job store connected to redis at %s (db %d).", cfg.Addr, cfg.DB)
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Put(ctx context.Context, status Status) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+status.RequestID, data, r.ttl).Err(); err != nil {
		log.Errorf("Error storing job %s in redis: %v", status.RequestID, err)
		return fmt.Errorf("failed to store job status: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, requestID string) (*Status, error) {
	data, err := r.client.Get(ctx, keyPrefix+requestID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job status: %w", err)
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode job status %s: %w", requestID, err)
	}
	return &status, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
