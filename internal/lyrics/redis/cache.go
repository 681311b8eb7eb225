// Package redis provides a Redis-backed section cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/songline/internal/domain"
	redisClient "github.com/go-redis/redis/v8"
)

const keyPrefix = "songline:sections:"

// Cache implements lyrics.SectionCache with JSON values in Redis.
type Cache struct {
	client *redisClient.Client
	ttl    time.Duration
}

// NewCache creates a section cache. A zero ttl keeps entries forever.
func NewCache(client *redisClient.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get loads cached sections.
func (c *Cache) Get(ctx context.Context, key string) ([]domain.DetectedSection, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redisClient.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get sections: %w", err)
	}

	var sections []domain.DetectedSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, false, fmt.Errorf("decode sections: %w", err)
	}
	return sections, true, nil
}

// Set stores sections under key.
func (c *Cache) Set(ctx context.Context, key string, sections []domain.DetectedSection) error {
	data, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set sections: %w", err)
	}
	return nil
}
