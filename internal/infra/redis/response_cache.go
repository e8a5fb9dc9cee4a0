package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"flag-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "flagquiz:cache:"

// ResponseCache stores flag bytes in Redis so they survive restarts and are
// shared between instances.
// Entries are stored as: SET flagquiz:cache:{namespace}:{code} {bytes}
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache returns a cache whose entries expire after ttl; zero keeps them forever.
func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put overwrites any existing entry, so racing writers are harmless.
func (c *ResponseCache) Put(ctx context.Context, key string, data []byte) error {
	return c.client.Set(ctx, cachePrefix+key, data, c.ttl).Err()
}

func (c *ResponseCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, cachePrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Purge deletes every cached entry whose namespace is not in validNamespaces.
func (c *ResponseCache) Purge(ctx context.Context, validNamespaces []string) (int, error) {
	valid := make(map[string]struct{}, len(validNamespaces))
	for _, ns := range validNamespaces {
		valid[ns] = struct{}{}
	}

	removed := 0
	iter := c.client.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := valid[domain.CacheNamespace(strings.TrimPrefix(key, cachePrefix))]; !ok {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	for len(stale) > 0 {
		batch := stale[:min(len(stale), 100)]
		stale = stale[len(batch):]
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}
