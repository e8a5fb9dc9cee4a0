package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/logger"
	transport "flag-quiz-service/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := buildComponents(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer deps.close()

	if removed, err := deps.resolver.PurgeStale(ctx); err != nil {
		log.Warn("purge stale flag cache failed", zap.Error(err))
	} else if removed > 0 {
		log.Info("purged stale flag cache entries", zap.Int("removed", removed))
	}

	service := app.NewQuizService(deps.sessionStore(), deps.loader, deps.resolver,
		app.WithLogger(log),
		app.WithMetrics(deps.metrics),
		app.WithPrecache(cfg.Quiz.Precache),
	)
	wsHandler := transport.NewWSHandler(service, log, cfg.Quiz.Slots)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, wsHandler, reg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting flag quiz service",
			zap.String("port", finalPort),
			zap.String("catalog_source", cfg.Catalog.Source),
			zap.Bool("redis", deps.redis != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error("failed to start server", zap.Error(err))
		return err
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
