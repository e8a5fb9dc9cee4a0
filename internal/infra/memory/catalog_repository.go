package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"flag-quiz-service/internal/app"
	"golang.org/x/sync/singleflight"
)

// CatalogRepository caches the raw catalog with a TTL so each new session does
// not go back to the catalog source.
type CatalogRepository struct {
	source app.CatalogSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	entry *cachedCatalog
}

type cachedCatalog struct {
	raw       any
	expiresAt time.Time
}

func NewCatalogRepository(source app.CatalogSource, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) FetchCatalog(ctx context.Context) (any, error) {
	if raw, ok := r.cached(r.clock()); ok {
		return raw, nil
	}

	return r.load(ctx)
}

func (r *CatalogRepository) load(ctx context.Context) (any, error) {
	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		if raw, ok := r.cached(now); ok {
			return raw, nil
		}

		raw, err := r.source.FetchCatalog(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entry = &cachedCatalog{
			raw:       raw,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *CatalogRepository) cached(now time.Time) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.entry != nil && r.entry.expiresAt.After(now) {
		return r.entry.raw, true
	}
	return nil, false
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogSource serves a fixed catalog (useful for tests/demos).
type StaticCatalogSource struct {
	catalog map[string]string
}

func NewStaticCatalogSource(catalog map[string]string) *StaticCatalogSource {
	return &StaticCatalogSource{catalog: catalog}
}

func (s *StaticCatalogSource) FetchCatalog(_ context.Context) (any, error) {
	out := make(map[string]string, len(s.catalog))
	for code, name := range s.catalog {
		out[code] = name
	}
	return out, nil
}
