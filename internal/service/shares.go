// shares.go — публичный доступ к файлам по токену ссылки.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/datashare/internal/domain/model"
	"github.com/bigkaa/datashare/internal/repository"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// downloadsTotal — количество обращений к скачиванию по результату.
var downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ds_downloads_total",
	Help: "Количество скачиваний по токену по результату",
}, []string{"result"})

// Download — открытый для чтения файл.
// Вызывающий код обязан закрыть Content.
type Download struct {
	Content       io.ReadSeekCloser
	FileName      string
	ContentType   string
	Size          int64
	ModTime       time.Time
	DownloadCount int64
}

// SharesService — сервис доступа к файлам по ссылке.
// Срок действия проверяется при каждом вызове, результаты не кэшируются.
type SharesService struct {
	files  repository.FileRepository
	shares repository.ShareRepository
	blobs  BlobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSharesService создаёт сервис ссылок.
func NewSharesService(
	files repository.FileRepository,
	shares repository.ShareRepository,
	blobs BlobStore,
	logger *slog.Logger,
) *SharesService {
	return &SharesService{
		files:  files,
		shares: shares,
		blobs:  blobs,
		logger: logger.With(slog.String("component", "shares")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Metadata возвращает публичные метаданные файла по токену.
func (s *SharesService) Metadata(ctx context.Context, token string) (*model.ShareMetadata, error) {
	_, file, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &model.ShareMetadata{
		FileName:  file.OriginalName,
		Size:      file.SizeBytes,
		ExpiresAt: file.ExpiresAt,
	}, nil
}

// Download открывает файл по токену и увеличивает счётчик скачиваний.
// Счётчик увеличивается только после успешного открытия blob-а.
func (s *SharesService) Download(ctx context.Context, token string) (*Download, error) {
	share, file, err := s.resolve(ctx, token)
	if err != nil {
		downloadsTotal.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	content, info, err := s.blobs.Open(file.StoredName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Метаданные остались после сбоя удаления: очистка уберёт их по истечении срока
			s.logger.Warn("Blob отсутствует для существующей записи",
				slog.String("file_id", file.ID),
				slog.String("stored_name", file.StoredName),
			)
			downloadsTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	count, err := s.shares.IncrementDownloadCount(ctx, share.ID)
	if err != nil {
		content.Close()
		if errors.Is(err, repository.ErrNotFound) {
			downloadsTotal.WithLabelValues("not_found").Inc()
			return nil, ErrNotFound
		}
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("ошибка обновления счётчика скачиваний: %w", err)
	}

	downloadsTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("Скачивание по ссылке",
		slog.String("file_id", file.ID),
		slog.Int64("download_count", count),
	)

	return &Download{
		Content:       content,
		FileName:      file.OriginalName,
		ContentType:   file.ContentType,
		Size:          info.Size,
		ModTime:       info.ModTime,
		DownloadCount: count,
	}, nil
}

// resolve находит ссылку и файл (явный второй запрос) и проверяет срок действия.
func (s *SharesService) resolve(ctx context.Context, token string) (*model.ShareRecord, *model.FileRecord, error) {
	if token == "" {
		return nil, nil, ErrNotFound
	}

	share, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}

	file, err := s.files.GetByID(ctx, share.FileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("ошибка получения файла: %w", err)
	}

	if file.IsExpired(s.now()) {
		return nil, nil, ErrExpired
	}
	return share, file, nil
}

// resultLabel — значение лейбла result для ошибки разрешения ссылки.
func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "error"
	}
}
