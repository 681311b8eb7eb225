// Package redis provides Redis connection utilities.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redisClient "github.com/go-redis/redis/v8"
)

// Config contains Redis connection configuration.
type Config struct {
	URL             string
	PoolSize        int
	ConnectAttempts int
}

// Connect parses a redis:// or rediss:// URL and pings the server,
// retrying with backoff until ConnectAttempts is exhausted.
func Connect(ctx context.Context, cfg Config) (*redisClient.Client, error) {
	opts, err := redisClient.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	attempts := max(cfg.ConnectAttempts, 1)
	client := redisClient.NewClient(opts)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			slog.Info("connected to redis", "addr", opts.Addr, "attempts", attempt)
			return client, nil
		}
		if attempt == attempts {
			break
		}

		backoff := time.Duration(attempt) * time.Second
		slog.Warn("failed to ping redis, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", backoff,
			"error", lastErr,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("connect to redis after %d attempts: %w", attempts, lastErr)
}
