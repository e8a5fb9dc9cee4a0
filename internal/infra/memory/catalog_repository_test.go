package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCatalogRepositoryCaches(t *testing.T) {
	source := &countingSource{inner: NewStaticCatalogSource(sampleCatalog())}
	repo := NewCatalogRepository(source, time.Minute)

	if _, err := repo.FetchCatalog(context.Background()); err != nil {
		t.Fatalf("fetch catalog: %v", err)
	}
	if source.count() != 1 {
		t.Fatalf("expected source once, got %d", source.count())
	}

	if _, err := repo.FetchCatalog(context.Background()); err != nil {
		t.Fatalf("fetch catalog 2: %v", err)
	}
	if source.count() != 1 {
		t.Fatalf("expected cache hit, source calls %d", source.count())
	}
}

func TestCatalogRepositoryExpires(t *testing.T) {
	source := &countingSource{inner: NewStaticCatalogSource(sampleCatalog())}
	repo := NewCatalogRepository(source, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	if _, err := repo.FetchCatalog(context.Background()); err != nil {
		t.Fatalf("fetch catalog: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.FetchCatalog(context.Background()); err != nil {
		t.Fatalf("fetch catalog after expiry: %v", err)
	}
	if source.count() != 2 {
		t.Fatalf("expected reload after ttl, source calls %d", source.count())
	}
}

type countingSource struct {
	inner *StaticCatalogSource
	mu    sync.Mutex
	calls int
}

func (s *countingSource) FetchCatalog(ctx context.Context) (any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.inner.FetchCatalog(ctx)
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleCatalog() map[string]string {
	return map[string]string{
		"FR": "France",
		"DE": "Germany",
		"IT": "Italy",
	}
}
