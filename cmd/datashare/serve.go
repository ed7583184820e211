package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/datashare/internal/api/generated"
	"github.com/bigkaa/datashare/internal/api/handlers"
	"github.com/bigkaa/datashare/internal/api/middleware"
	"github.com/bigkaa/datashare/internal/config"
	"github.com/bigkaa/datashare/internal/database"
	"github.com/bigkaa/datashare/internal/server"
	"github.com/bigkaa/datashare/internal/service"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// NewServeCommand возвращает команду запуска HTTP API.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API и фоновую очистку",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// 1. Загрузка конфигурации и настройка логгера
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("Datashare запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("metadata_backend", cfg.MetadataBackend),
	)

	if os.Getenv("DS_DEPHEALTH_GROUP") == "" {
		logger.Warn("DS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 2. Хранилище blob-ов
	store, err := blobstore.NewOS(cfg.DataDir)
	if err != nil {
		return err
	}
	logger.Info("Хранилище файлов готово", slog.String("root", store.Root()))

	// 3. Хранилище метаданных (миграции + pgxpool или память)
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к хранилищу метаданных", slog.String("error", err.Error()))
		return err
	}
	defer be.Close()

	// 4. Сервисы
	filesSvc := service.NewFilesService(service.UploadPolicy{
		DefaultDays:         cfg.ShareDefaultDays,
		MaxDays:             cfg.ShareMaxDays,
		ForbiddenExtensions: cfg.ForbiddenExtensions,
		MaxFileSize:         cfg.MaxFileSize,
	}, be.files, be.shares, be.registrar, store, logger)
	sharesSvc := service.NewSharesService(be.files, be.shares, store, logger)

	// 5. Мониторинг зависимостей (topologymetrics)
	var depHealth handlers.DependencyHealth
	dhSvc, err := service.NewDephealthService(dephealthName(), cfg.DephealthGroup, service.DephealthDeps{
		DB:          be.sqlDB,
		PostgresURL: cfg.DatabaseURL(),
		JWKSURL:     cfg.JWKSURL,
	}, cfg.DephealthCheckInterval, logger)
	switch {
	case errors.Is(err, service.ErrNoDependencies):
		logger.Info("Мониторинг зависимостей отключён: зависимостей нет")
	case err != nil:
		return fmt.Errorf("создание dephealth: %w", err)
	default:
		if err := dhSvc.Start(ctx); err != nil {
			return fmt.Errorf("запуск dephealth: %w", err)
		}
		defer dhSvc.Stop()
		depHealth = dhSvc
	}

	// 6. Фоновая очистка просроченных файлов
	sweeper := service.NewSweeper(be.files, store, service.SweeperConfig{
		Interval:    cfg.SweepInterval,
		BatchSize:   cfg.SweepBatchSize,
		Concurrency: cfg.SweepConcurrency,
		OrphanScan:  cfg.OrphanScan,
		OrphanGrace: cfg.OrphanGrace,
	}, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// 7. JWT middleware
	var auth middleware.Authenticator = middleware.DenyAll{}
	if cfg.JWKSURL != "" {
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSURL,
			CACertPath:      cfg.JWKSCACert,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if err != nil {
			return fmt.Errorf("создание JWT middleware: %w", err)
		}
		auth = jwtAuth
		logger.Info("JWT middleware настроен", slog.String("jwks_url", cfg.JWKSURL))
	} else {
		logger.Warn("DS_JWKS_URL не задан: операции владельцев будут отклоняться с 401")
	}

	// 8. OpenAPI-контракт, readiness и handlers
	doc, err := generated.GetSwagger()
	if err != nil {
		return err
	}

	checkers := []handlers.ReadinessChecker{store}
	if be.pool != nil {
		checkers = append(checkers, database.NewReadinessChecker(be.pool))
	}

	apiHandler := handlers.NewAPIHandler(
		handlers.NewFilesHandler(filesSvc, cfg.MaxFileSize, logger),
		handlers.NewSharesHandler(sharesSvc, logger),
		handlers.NewHealthHandler(depHealth, checkers...),
		handlers.NewSpecHandler(doc),
	)

	// 9. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler, auth, middleware.NewRequestValidator(doc))
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Datashare остановлен")
	return nil
}
