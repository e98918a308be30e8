// Package cache holds the shared Redis client and the report cache built on it.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"donasi/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// instrumentHook traces every command and counts failures. A cache miss
// (redis.Nil) is not a failure.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := observability.TraceRedisOperation(ctx, cmd.Name())
		err := next(ctx, cmd)
		observe(cmd.Name(), err)
		observability.EndSpan(span, ignoreNil(err))
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := observability.TraceRedisOperation(ctx, "pipeline")
		err := next(ctx, cmds)
		observe("pipeline", err)
		observability.EndSpan(span, ignoreNil(err))
		return err
	}
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func observe(operation string, err error) {
	if ignoreNil(err) != nil {
		observability.RedisErrorRate.WithLabelValues(operation).Inc()
	}
}

func options(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// InitRedis connects to addr, a host:port or a redis:// URL. Reports are
// served straight from the ledger while Redis is unreachable.
func InitRedis(addr string) {
	opts, err := options(addr)
	if err != nil {
		slog.Warn("invalid REDIS_URL, continuing without cache", slog.String("addr", addr), slog.String("error", err.Error()))
		client = nil
		return
	}

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis connection failed, continuing without cache", slog.String("error", err.Error()))
		_ = c.Close()
		client = nil
		return
	}

	c.AddHook(instrumentHook{})
	client = c
	slog.Info("Redis connected successfully")
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the Redis client. Tests use it to point the cache at miniredis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(instrumentHook{})
	}
	client = c
}
