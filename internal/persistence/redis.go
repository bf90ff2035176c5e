package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration. A failed boot
// probe is logged but not fatal; callers treat Redis errors as cache misses.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	probeCtx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()

	started := time.Now()
	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.Warn("unable to reach redis",
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
	} else {
		logger.Info("connected to redis",
			zap.String("addr", cfg.Addr),
			zap.Duration("rtt", time.Since(started)),
		)
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// Handle returns the underlying client, or nil when Redis is not configured.
func (r *Redis) Handle() *redis.Client {
	if r == nil {
		return nil
	}
	return r.Client
}
