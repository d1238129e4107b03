package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/redis/go-redis/v9"
)

const defaultLockKeyPrefix = "lock:"

// RedisRunLock implements integration.RunLock with Redis so that several
// instances never run the same sync kind at once
type RedisRunLock struct {
	client    *redis.Client
	locker    *redislock.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRunLock connects to Redis and verifies the connection
func NewRedisRunLock(cfg RedisConfig) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client, defaultLockKeyPrefix), nil
}

// NewRedisRunLockWithClient creates a lock over an existing client
func NewRedisRunLockWithClient(client *redis.Client, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisRunLock{
		client:    client,
		locker:    redislock.New(client),
		keyPrefix: keyPrefix,
	}
}

// Acquire obtains the lock without waiting. The key expires after ttl so a
// crashed holder cannot block later runs forever.
func (l *RedisRunLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.keyPrefix+name, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, integration.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain run lock %q: %w", name, err)
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		// Expired locks are gone already
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}

// Close closes the Redis connection
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

var _ integration.RunLock = (*RedisRunLock)(nil)
