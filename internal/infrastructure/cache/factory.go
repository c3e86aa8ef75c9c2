package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunLock is satisfied by both lock implementations
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// LockFactoryOption configures NewRunLock
type LockFactoryOption func(*lockFactory)

type lockFactory struct {
	logger        *zap.Logger
	allowFallback bool
	dial          func(context.Context, RedisConfig) (RunLock, error)
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) LockFactoryOption {
	return func(f *lockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to a process-local lock.
// Default is true.
func WithInMemoryFallback(allow bool) LockFactoryOption {
	return func(f *lockFactory) {
		f.allowFallback = allow
	}
}

// NewRunLock returns a Redis lock when enabled is set, falling back to memory when allowed.
// A process-local lock only serialises sweeps inside one instance.
func NewRunLock(ctx context.Context, enabled bool, cfg RedisConfig, opts ...LockFactoryOption) (RunLock, error) {
	f := &lockFactory{
		logger:        zap.NewNop(),
		allowFallback: true,
		dial: func(ctx context.Context, cfg RedisConfig) (RunLock, error) {
			return NewRedisRunLock(ctx, cfg)
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	if !enabled {
		f.logger.Info("Redis disabled, using in-memory sweep lock")
		return NewInMemoryRunLock(), nil
	}

	lock, err := f.dial(ctx, cfg)
	if err == nil {
		f.logger.Info("using Redis sweep lock", zap.String("addr", cfg.Addr))
		return lock, nil
	}
	if !f.allowFallback {
		return nil, fmt.Errorf("redis required for the sweep lock but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory sweep lock. "+
		"Concurrent sweeps on other instances will not be excluded.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}
