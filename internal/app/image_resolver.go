package app

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"flag-quiz-service/internal/domain"
	"flag-quiz-service/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ImageSource fetches raw flag bytes. Statuses >= 400 are failures.
type ImageSource interface {
	FetchImage(ctx context.Context, code string) (domain.ImageResponse, error)
}

// ResponseCache stores flag bytes across sessions. Keys are built with
// domain.CacheKey; Purge drops every entry whose namespace is not listed.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Has(ctx context.Context, key string) (bool, error)
	Purge(ctx context.Context, validNamespaces []string) (int, error)
}

// ResolverOptions configures an ImageResolver.
type ResolverOptions struct {
	Namespace       string
	ValidNamespaces []string
	ContentType     string
	Placeholder     string
	Fallback        string
	WarmConcurrency int
}

// ImageResolver turns country codes into displayable flags, cache first.
type ImageResolver struct {
	source  ImageSource
	cache   ResponseCache
	opts    ResolverOptions
	logger  *zap.Logger
	metrics *metrics.Metrics
	sf      singleflight.Group
}

func NewImageResolver(source ImageSource, cache ResponseCache, opts ResolverOptions, logger *zap.Logger, m *metrics.Metrics) *ImageResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Fallback == "" {
		opts.Fallback = opts.Placeholder
	}
	if opts.WarmConcurrency <= 0 {
		opts.WarmConcurrency = 1
	}
	if !slices.Contains(opts.ValidNamespaces, opts.Namespace) {
		opts.ValidNamespaces = append(slices.Clone(opts.ValidNamespaces), opts.Namespace)
	}
	return &ImageResolver{
		source:  source,
		cache:   cache,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
}

// AltText describes a flag for assistive technology. Not implemented; always empty.
func AltText(string) string {
	return ""
}

// Resolve returns the flag for code, fetching and caching it on a miss.
func (r *ImageResolver) Resolve(ctx context.Context, code string) (domain.FlagImage, error) {
	key := domain.CacheKey(r.opts.Namespace, code)

	data, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("flag cache lookup failed", zap.String("code", code), zap.Error(err))
	}
	if err == nil && ok {
		r.metrics.CacheHit()
		return r.image(code, data), nil
	}
	r.metrics.CacheMiss()

	data, err = r.shared(ctx, code, key)
	if err != nil {
		return domain.FlagImage{}, err
	}
	return r.image(code, data), nil
}

// shared joins or starts the single in-flight fetch for key. The fetch is not
// tied to any one caller: cancelling ctx only stops this caller from waiting,
// and the fetch still completes and fills the cache for everyone else.
func (r *ImageResolver) shared(ctx context.Context, code, key string) ([]byte, error) {
	ch := r.sf.DoChan(key, func() (interface{}, error) {
		fetchCtx := context.WithoutCancel(ctx)
		// A caller that missed the cache just before the previous flight landed.
		if data, ok, err := r.cache.Get(fetchCtx, key); err == nil && ok {
			return data, nil
		}
		return r.fetch(fetchCtx, code, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch asks the image source for code and stores a copy of the body under key.
func (r *ImageResolver) fetch(ctx context.Context, code, key string) ([]byte, error) {
	start := time.Now()
	resp, err := r.source.FetchImage(ctx, code)
	if err != nil {
		r.metrics.ObserveFetch(0, time.Since(start))
		return nil, fmt.Errorf("fetch flag image for %s: %w", code, err)
	}
	r.metrics.ObserveFetch(resp.Status, time.Since(start))
	if resp.Status >= 400 {
		return nil, &domain.ImageFetchError{Code: code, Status: resp.Status}
	}

	if err := r.cache.Put(ctx, key, bytes.Clone(resp.Body)); err != nil {
		r.logger.Warn("flag cache write failed", zap.String("code", code), zap.Error(err))
	}
	return resp.Body, nil
}

func (r *ImageResolver) image(code string, data []byte) domain.FlagImage {
	return domain.FlagImage{Code: code, ContentType: r.opts.ContentType, Data: data}
}

// Bind points target at code, shows the placeholder, and resolves the flag in the
// background. The result is applied only if target is still bound to code when the
// resolution finishes; a failed resolution shows the fallback image. The returned
// channel yields whether the result was applied and is then closed.
func (r *ImageResolver) Bind(ctx context.Context, target *FlagTarget, code string) <-chan bool {
	target.retag(code, domain.Image{Code: code, Src: r.opts.Placeholder, Alt: AltText(code)})

	done := make(chan bool, 1)
	go func() {
		defer close(done)

		img := domain.Image{Code: code, Alt: AltText(code)}
		flag, err := r.Resolve(ctx, code)
		if err != nil {
			r.logger.Debug("flag unavailable, using fallback", zap.String("code", code), zap.Error(err))
			img.Src = r.opts.Fallback
		} else {
			img.Src = flag.DataURI()
		}

		applied := target.applyIfPending(code, img)
		if !applied {
			r.metrics.StaleDiscard()
		}
		done <- applied
	}()
	return done
}

// WarmAll makes sure every code is cached. Failures are logged and skipped. It
// returns how many flags were fetched.
func (r *ImageResolver) WarmAll(ctx context.Context, codes []string) int {
	var fetched atomic.Int64

	var g errgroup.Group
	g.SetLimit(r.opts.WarmConcurrency)
	for _, code := range codes {
		g.Go(func() error {
			key := domain.CacheKey(r.opts.Namespace, code)
			if ok, err := r.cache.Has(ctx, key); err == nil && ok {
				return nil
			}
			if _, err := r.shared(ctx, code, key); err != nil {
				r.logger.Debug("pre-cache skipped flag", zap.String("code", code), zap.Error(err))
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("flag pre-cache finished", zap.Int("codes", len(codes)), zap.Int64("fetched", fetched.Load()))
	return int(fetched.Load())
}

// PurgeStale evicts cache entries from namespaces this build no longer uses.
func (r *ImageResolver) PurgeStale(ctx context.Context) (int, error) {
	n, err := r.cache.Purge(ctx, r.opts.ValidNamespaces)
	if err != nil {
		return 0, fmt.Errorf("purge flag cache: %w", err)
	}
	if n > 0 {
		r.logger.Info("purged stale flag cache entries", zap.Int("count", n))
	}
	return n, nil
}
