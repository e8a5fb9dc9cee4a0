package redis

import (
	"context"
	"math/rand"
	"time"

	"flag-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "flagquiz:catalog"

// CatalogRepository caches the catalog in Redis and falls back to a source on a miss.
// The catalog is stored as: HSET flagquiz:catalog {code} {name}
// A source that does not return a code->name mapping is passed through uncached so
// the catalog loader can reject it.
type CatalogRepository struct {
	client *redis.Client
	source app.CatalogSource
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, source app.CatalogSource, ttl time.Duration, logger *zap.Logger) *CatalogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogRepository{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) FetchCatalog(ctx context.Context) (any, error) {
	cached, err := r.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(cached) > 0 {
		return cached, nil
	}

	result, err, _ := r.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := r.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(cached) > 0 {
			return cached, nil
		}

		raw, err := r.source.FetchCatalog(ctx)
		if err != nil {
			return nil, err
		}

		entries, ok := asNames(raw)
		if !ok || len(entries) == 0 {
			return raw, nil
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, catalogKey)
		pipe.HSet(ctx, catalogKey, entries)
		if ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		// The source result is still served; the next load retries the write.
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Warn("catalog cache write failed", zap.Int("entries", len(entries)), zap.Error(err))
		}

		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Invalidate drops the cached catalog.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}

// asNames flattens a code->name mapping into HSET arguments.
func asNames(raw any) (map[string]interface{}, bool) {
	out := make(map[string]interface{})
	switch v := raw.(type) {
	case map[string]string:
		for code, name := range v {
			out[code] = name
		}
	case map[string]any:
		for code, name := range v {
			s, ok := name.(string)
			if !ok {
				return nil, false
			}
			out[code] = s
		}
	default:
		return nil, false
	}
	return out, true
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
