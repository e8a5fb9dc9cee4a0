package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/config"
	"flag-quiz-service/internal/infra/httpsource"
	"flag-quiz-service/internal/infra/memory"
	"flag-quiz-service/internal/infra/postgres"
	redisinfra "flag-quiz-service/internal/infra/redis"
	"flag-quiz-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Flag images only change when the namespace is bumped.
const flagCacheTTL = 7 * 24 * time.Hour

// components are the collaborators shared by every command.
type components struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	redis *redis.Client
	pool  *pgxpool.Pool

	loader   *app.CatalogLoader
	resolver *app.ImageResolver
}

func buildComponents(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*components, error) {
	c := &components{cfg: cfg, logger: logger}
	if reg != nil {
		c.metrics = metrics.New(reg)
	}

	if cfg.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := c.redis.Ping(ctx).Err(); err != nil {
			c.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	httpClient := &http.Client{Timeout: config.TTLDuration(cfg.Images.Timeout, 10*time.Second)}

	source, err := c.catalogSource(ctx, httpClient)
	if err != nil {
		c.close()
		return nil, err
	}
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, time.Hour)
	var repo app.CatalogSource
	if c.redis != nil {
		repo = redisinfra.NewCatalogRepository(c.redis, source, catalogTTL, logger)
	} else {
		repo = memory.NewCatalogRepository(source, catalogTTL)
	}
	c.loader = app.NewCatalogLoader(repo, cfg.Catalog.Excluded)

	var cache app.ResponseCache
	if c.redis != nil {
		cache = redisinfra.NewResponseCache(c.redis, flagCacheTTL)
	} else {
		cache = memory.NewResponseCache()
	}
	c.resolver = app.NewImageResolver(
		httpsource.NewImageSource(httpClient, cfg.Images.URLTemplate),
		cache,
		app.ResolverOptions{
			Namespace:       cfg.ImageNamespace(),
			ValidNamespaces: cfg.ValidNamespaces(),
			ContentType:     cfg.Images.ContentType,
			Placeholder:     cfg.Images.Placeholder,
			Fallback:        cfg.Images.Fallback,
			WarmConcurrency: cfg.Quiz.WarmConcurrency,
		},
		logger,
		c.metrics,
	)
	return c, nil
}

func (c *components) catalogSource(ctx context.Context, client *http.Client) (app.CatalogSource, error) {
	switch c.cfg.Catalog.Source {
	case "http":
		return httpsource.NewCatalogSource(client, c.cfg.Catalog.URL), nil
	case "postgres":
		if c.cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("catalog source postgres: postgres url not configured")
		}
		pool, err := pgxpool.Connect(ctx, c.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.pool = pool
		return postgres.NewCatalogSource(pool), nil
	case "static":
		return memory.NewStaticCatalogSource(builtinCatalog()), nil
	}
	return nil, fmt.Errorf("unknown catalog source %q", c.cfg.Catalog.Source)
}

// sessionStore keeps sessions locally and marks them live in Redis when it is configured.
func (c *components) sessionStore() app.SessionRepository {
	if c.redis != nil {
		return redisinfra.NewSessionStore(c.redis, config.TTLDuration(c.cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewSessionStore()
}

func (c *components) close() {
	if c.pool != nil {
		c.pool.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

// builtinCatalog serves offline development.
func builtinCatalog() map[string]string {
	return map[string]string{
		"AT": "Austria",
		"BE": "Belgium",
		"CH": "Switzerland",
		"DE": "Germany",
		"DK": "Denmark",
		"ES": "Spain",
		"FR": "France",
		"GB": "United Kingdom",
		"IE": "Ireland",
		"IT": "Italy",
		"NL": "Netherlands",
		"NO": "Norway",
		"PL": "Poland",
		"PT": "Portugal",
		"SE": "Sweden",
	}
}
