package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/datashare/internal/config"
	"github.com/bigkaa/datashare/internal/service"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// NewSweepCommand возвращает команду однократной очистки.
func NewSweepCommand() *cobra.Command {
	var noOrphans bool

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Однократно удалить просроченные файлы и blob-ы без записи",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MetadataBackend != config.BackendPostgres {
				return errMemoryBackend
			}

			store, err := blobstore.NewOS(cfg.DataDir)
			if err != nil {
				return err
			}
			be, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			sweeper := service.NewSweeper(be.files, store, service.SweeperConfig{
				Interval:    cfg.SweepInterval,
				BatchSize:   cfg.SweepBatchSize,
				Concurrency: cfg.SweepConcurrency,
				OrphanScan:  cfg.OrphanScan && !noOrphans,
				OrphanGrace: cfg.OrphanGrace,
			}, logger)

			result, err := sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}

			logger.Info("Очистка завершена",
				slog.Int("deleted", result.Deleted),
				slog.Int("skipped", result.Skipped),
				slog.Int("errors", result.Errors),
				slog.Int("orphans_deleted", result.OrphansDeleted),
				slog.Duration("duration", result.Duration),
			)
			return nil
		},
	}

	sweepCmd.Flags().BoolVar(&noOrphans, "no-orphans", false, "не удалять blob-ы без записи в реестре")
	return sweepCmd
}
