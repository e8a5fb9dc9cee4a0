package cli

import (
	"fmt"
	"net/http"
	"time"

	"flag-quiz-service/internal/app"
	"flag-quiz-service/internal/config"
	"flag-quiz-service/internal/infra/httpsource"
	"flag-quiz-service/internal/infra/postgres"
	redisinfra "flag-quiz-service/internal/infra/redis"
	"flag-quiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewCatalogCmd groups catalog maintenance commands.
func NewCatalogCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and import the country catalog",
	}
	cmd.AddCommand(newCatalogListCmd(configPath))
	cmd.AddCommand(newCatalogImportCmd(configPath))
	return cmd
}

func newCatalogListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the filtered catalog from the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			deps, err := buildComponents(ctx, cfg, zap.NewNop(), nil)
			if err != nil {
				return err
			}
			defer deps.close()

			catalog, err := deps.loader.Load(ctx)
			if err != nil {
				return err
			}
			for _, code := range catalog.Codes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, catalog[code])
			}
			return nil
		},
	}
}

// newCatalogImportCmd copies the HTTP catalog into the countries table.
func newCatalogImportCmd(configPath *string) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch the catalog over HTTP and upsert it into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			if url == "" {
				url = cfg.Catalog.URL
			}
			client := &http.Client{Timeout: config.TTLDuration(cfg.Images.Timeout, 30*time.Second)}
			// Exclusions apply when sessions load, so every country is stored.
			loader := app.NewCatalogLoader(httpsource.NewCatalogSource(client, url), nil)
			catalog, err := loader.Load(ctx)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			written, err := postgres.NewCountryStore(db).Upsert(ctx, catalog)
			if err != nil {
				return err
			}
			log.Info("catalog imported", zap.String("url", url), zap.Int("countries", written))

			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer client.Close()
				if err := redisinfra.NewCatalogRepository(client, nil, 0, log).Invalidate(ctx); err != nil {
					log.Warn("catalog cache invalidation failed", zap.Error(err))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d countries\n", written)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "catalog JSON url (defaults to catalog.url)")
	return cmd
}
