package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/datashare/internal/config"
)

// NewRootCommand возвращает корневую команду со всеми подкомандами.
func NewRootCommand() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "datashare",
		Short: "Обмен файлами по временным ссылкам.",
		Long: `Datashare принимает файлы от аутентифицированных владельцев, выдаёт
ссылку для анонимного скачивания и удаляет файлы по истечении срока.
Конфигурация задаётся переменными окружения DS_*.`,
		Version:      config.Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewSweepCommand())
	rootCmd.AddCommand(NewDevIDPCommand())

	return rootCmd
}

// loadConfig загружает конфигурацию и настраивает логгер.
// Ошибка конфигурации логируется через slog по умолчанию.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("Ошибка загрузки конфигурации",
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}
	return cfg, config.SetupLogger(cfg), nil
}
