package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/datashare/internal/config"
	"github.com/bigkaa/datashare/internal/database"
)

// errMemoryBackend — команда требует PostgreSQL.
var errMemoryBackend = errors.New("команда требует DS_METADATA_BACKEND=postgres")

// NewMigrateCommand возвращает команду управления схемой БД.
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Управление схемой PostgreSQL",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		Args:  cobra.NoArgs,
		RunE: withPostgres(func(cfg *config.Config, logger *slog.Logger) error {
			return database.Migrate(cfg, logger)
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Откатить все миграции (удаляет данные)",
		Args:  cobra.NoArgs,
		RunE: withPostgres(func(cfg *config.Config, logger *slog.Logger) error {
			return database.MigrateDown(cfg, logger)
		}),
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Показать текущую версию схемы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPostgres(func(cfg *config.Config, _ *slog.Logger) error {
				version, dirty, err := database.MigrationVersion(cfg)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return err
			})(cmd, nil)
		},
	})

	return migrateCmd
}

// withPostgres загружает конфигурацию и вызывает fn, если бэкенд — postgres.
func withPostgres(fn func(cfg *config.Config, logger *slog.Logger) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.MetadataBackend != config.BackendPostgres {
			logger.Error("Неподдерживаемый бэкенд метаданных", slog.String("backend", cfg.MetadataBackend))
			return errMemoryBackend
		}
		if err := fn(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			return err
		}
		return nil
	}
}
