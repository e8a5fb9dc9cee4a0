package memory

import (
	"context"
	"testing"

	"flag-quiz-service/internal/domain"
)

func TestResponseCacheCopiesOnPutAndGet(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache()
	key := domain.CacheKey("flags-v1", "FR")

	data := []byte("<svg/>")
	if err := cache.Put(ctx, key, data); err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	got, ok, err := cache.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if string(got) != "<svg/>" {
		t.Fatalf("cache shares caller buffer, got %q", got)
	}
	got[0] = 'Y'
	if again, _, _ := cache.Get(ctx, key); string(again) != "<svg/>" {
		t.Fatalf("get returned shared buffer, got %q", again)
	}
}

func TestResponseCachePurgesUnknownNamespaces(t *testing.T) {
	ctx := context.Background()
	cache := NewResponseCache()
	_ = cache.Put(ctx, domain.CacheKey("flags-v1", "FR"), []byte("old"))
	_ = cache.Put(ctx, domain.CacheKey("flags-v2", "FR"), []byte("new"))
	_ = cache.Put(ctx, domain.CacheKey("flags-v2", "DE"), []byte("new"))

	removed, err := cache.Purge(ctx, []string{"flags-v2"})
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if ok, _ := cache.Has(ctx, domain.CacheKey("flags-v1", "FR")); ok {
		t.Fatalf("expected stale namespace to be purged")
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries left, got %d", cache.Len())
	}
}
