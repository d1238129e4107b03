package cache

import (
	"fmt"

	"github.com/erp/marketsync/internal/domain/integration"
	"github.com/erp/marketsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RunLockFactory creates run locks based on configuration
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to an
// in-memory lock. Default is true.
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(cfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLock creates a Redis-backed run lock
func (f *RunLockFactory) CreateRedisLock() (*RedisRunLock, error) {
	lock, err := NewRedisRunLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis run lock: %w", err)
	}
	return lock, nil
}

// CreateLock returns a Redis lock when Redis is enabled and reachable and an
// in-memory lock otherwise
func (f *RunLockFactory) CreateLock() (integration.RunLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory run lock")
		return NewInMemoryRunLock(), nil
	}

	lock, err := f.CreateRedisLock()
	if err == nil {
		f.logger.Info("using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for run locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Runs on other instances are not excluded.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}
