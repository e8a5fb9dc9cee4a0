package cli

import (
	"fmt"

	"flag-quiz-service/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWarmCmd fills the flag cache for every catalog country.
func NewWarmCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Pre-cache every flag image into the configured cache",
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

			deps, err := buildComponents(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer deps.close()

			if _, err := deps.resolver.PurgeStale(ctx); err != nil {
				log.Warn("purge stale flag cache failed", zap.Error(err))
			}
			catalog, err := deps.loader.Load(ctx)
			if err != nil {
				return err
			}
			fetched := deps.resolver.WarmAll(ctx, catalog.Codes())
			log.Info("flag cache warmed", zap.Int("countries", len(catalog)), zap.Int("fetched", fetched))
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d of %d flags\n", fetched, len(catalog))
			return nil
		},
	}
}
