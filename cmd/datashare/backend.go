package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/datashare/internal/config"
	"github.com/bigkaa/datashare/internal/database"
	"github.com/bigkaa/datashare/internal/repository"
	"github.com/bigkaa/datashare/internal/repository/memrepo"
)

// backend — хранилище метаданных, выбранное DS_METADATA_BACKEND.
type backend struct {
	files     repository.FileRepository
	shares    repository.ShareRepository
	registrar repository.UploadRegistrar

	// Только для postgres
	pool  *pgxpool.Pool
	sqlDB *sql.DB
}

// openBackend подключается к хранилищу метаданных. Для postgres
// перед подключением применяются миграции.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if cfg.MetadataBackend == config.BackendMemory {
		logger.Warn("Метаданные хранятся в памяти и будут потеряны при перезапуске")
		db := memrepo.New()
		return &backend{
			files:     db.Files(),
			shares:    db.Shares(),
			registrar: db.Registrar(),
		}, nil
	}

	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, err
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &backend{
		files:     repository.NewFileRepository(pool),
		shares:    repository.NewShareRepository(pool),
		registrar: repository.NewUploadRegistrar(repository.NewTxRunner(pool)),
		pool:      pool,
		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		sqlDB: database.OpenSQLDB(pool),
	}, nil
}

// Close освобождает подключения к БД.
func (b *backend) Close() {
	if b.sqlDB != nil {
		_ = b.sqlDB.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
