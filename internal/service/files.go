// Пакет service — бизнес-логика Datashare.
// files.go — загрузка, список и удаление файлов владельца.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/datashare/internal/domain/model"
	"github.com/bigkaa/datashare/internal/repository"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

const (
	// tokenBytes — длина токена ссылки в байтах до кодирования.
	tokenBytes = 32
	// tokenAttempts — количество попыток регистрации при коллизии токена.
	tokenAttempts = 3
)

// Prometheus метрики файлов
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ds_uploads_total",
		Help: "Количество загрузок по результату",
	}, []string{"result"})

	uploadedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_uploaded_bytes_total",
		Help: "Общий объём успешно загруженных данных в байтах",
	})

	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_files_deleted_total",
		Help: "Количество файлов, удалённых владельцами",
	})
)

// UploadPolicy — правила приёма файлов и срока жизни ссылок.
type UploadPolicy struct {
	// DefaultDays — срок жизни ссылки, если клиент его не указал
	DefaultDays int
	// MaxDays — максимальный срок жизни ссылки
	MaxDays int
	// ForbiddenExtensions — запрещённые расширения (без точки, в нижнем регистре)
	ForbiddenExtensions []string
	// MaxFileSize — максимальный размер файла в байтах
	MaxFileSize int64
}

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// OwnerID — идентификатор владельца (sub из JWT)
	OwnerID string
	// FileName — имя файла, переданное клиентом
	FileName string
	// Size — заявленный размер (0 или -1, если неизвестен)
	Size int64
	// Reader — поток данных файла
	Reader io.Reader
	// ExpirationDays — запрошенный срок жизни ссылки (nil — по умолчанию)
	ExpirationDays *int
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	FileID     string
	ShareToken string
	ExpiresAt  time.Time
}

// FilesService — сервис жизненного цикла файлов.
type FilesService struct {
	policy    UploadPolicy
	forbidden map[string]struct{}
	files     repository.FileRepository
	shares    repository.ShareRepository
	registrar repository.UploadRegistrar
	blobs     BlobStore
	logger    *slog.Logger

	now      func() time.Time
	newToken func() (string, error)
}

// NewFilesService создаёт сервис файлов.
func NewFilesService(
	policy UploadPolicy,
	files repository.FileRepository,
	shares repository.ShareRepository,
	registrar repository.UploadRegistrar,
	blobs BlobStore,
	logger *slog.Logger,
) *FilesService {
	forbidden := make(map[string]struct{}, len(policy.ForbiddenExtensions))
	for _, ext := range policy.ForbiddenExtensions {
		forbidden[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &FilesService{
		policy:    policy,
		forbidden: forbidden,
		files:     files,
		shares:    shares,
		registrar: registrar,
		blobs:     blobs,
		logger:    logger.With(slog.String("component", "files")),
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  generateToken,
	}
}

// Upload сохраняет содержимое, регистрирует файл и создаёт ссылку.
//
// Порядок:
//  1. Проверка имени, расширения и заявленного размера (без побочных эффектов)
//  2. Запись blob-а
//  3. Регистрация файла и ссылки в одной транзакции
//
// Метаданные создаются только после успешной записи blob-а. При ошибке
// регистрации blob удаляется.
func (s *FilesService) Upload(ctx context.Context, p UploadParams) (*UploadResult, error) {
	name := originalName(p.FileName)
	if name == "" {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: имя файла не задано", ErrValidation)
	}

	if ext := extension(name); ext != "" {
		if _, denied := s.forbidden[ext]; denied {
			uploadsTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("%w: .%s", ErrRejectedExtension, ext)
		}
	}

	if s.policy.MaxFileSize > 0 && p.Size > s.policy.MaxFileSize {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s при максимуме %s", ErrFileTooLarge,
			humanize.IBytes(uint64(p.Size)), humanize.IBytes(uint64(s.policy.MaxFileSize)))
	}

	reader := p.Reader
	if s.policy.MaxFileSize > 0 {
		// Один лишний байт позволяет отличить «ровно максимум» от превышения
		reader = io.LimitReader(p.Reader, s.policy.MaxFileSize+1)
	}

	stored, err := s.blobs.Store(reader, name)
	if err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, blobstore.ErrEmptyBlob) {
			return nil, fmt.Errorf("%w: %w: %w", ErrValidation, ErrStorage, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if s.policy.MaxFileSize > 0 && stored.Size > s.policy.MaxFileSize {
		s.removeBlob(stored.StoredName)
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: максимум %s", ErrFileTooLarge, humanize.IBytes(uint64(s.policy.MaxFileSize)))
	}

	now := s.now()
	file := &model.FileRecord{
		ID:           uuid.New().String(),
		OwnerID:      p.OwnerID,
		OriginalName: name,
		StoredName:   stored.StoredName,
		ContentType:  stored.ContentType,
		SizeBytes:    stored.Size,
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, s.expirationDays(p.ExpirationDays)),
	}

	share, err := s.register(ctx, file)
	if err != nil {
		s.removeBlob(stored.StoredName)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	uploadedBytesTotal.Add(float64(file.SizeBytes))

	s.logger.Info("Файл загружен",
		slog.String("file_id", file.ID),
		slog.String("owner_id", file.OwnerID),
		slog.String("filename", file.OriginalName),
		slog.String("size", humanize.IBytes(uint64(file.SizeBytes))),
		slog.Time("expires_at", file.ExpiresAt),
	)

	return &UploadResult{
		FileID:     file.ID,
		ShareToken: share.Token,
		ExpiresAt:  file.ExpiresAt,
	}, nil
}

// register создаёт записи файла и ссылки. При коллизии токена
// повторяет попытку с новым токеном.
func (s *FilesService) register(ctx context.Context, file *model.FileRecord) (*model.ShareRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= tokenAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, fmt.Errorf("%w: ошибка генерации токена: %w", ErrStorage, err)
		}

		share := &model.ShareRecord{
			ID:        uuid.New().String(),
			FileID:    file.ID,
			Token:     token,
			CreatedAt: file.CreatedAt,
		}

		err = s.registrar.RegisterUpload(ctx, file, share)
		if err == nil {
			return share, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: ошибка регистрации файла: %w", ErrStorage, err)
		}

		s.logger.Warn("Коллизия при регистрации файла, повтор",
			slog.String("file_id", file.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: не удалось зарегистрировать файл за %d попытки: %w", ErrStorage, tokenAttempts, lastErr)
}

// List возвращает файлы владельца вместе с их ссылками в порядке загрузки.
func (s *FilesService) List(ctx context.Context, ownerID string) ([]model.FileSummary, error) {
	files, err := s.files.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	if len(files) == 0 {
		return []model.FileSummary{}, nil
	}

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}

	shares, err := s.shares.ListByFileIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылок: %w", err)
	}

	result := make([]model.FileSummary, 0, len(files))
	for _, f := range files {
		item := model.FileSummary{
			FileID:      f.ID,
			Name:        f.OriginalName,
			Size:        f.SizeBytes,
			ContentType: f.ContentType,
			CreatedAt:   f.CreatedAt,
			ExpiresAt:   f.ExpiresAt,
		}
		if sh, ok := shares[f.ID]; ok {
			item.ShareToken = sh.Token
			item.DownloadCount = sh.DownloadCount
		}
		result = append(result, item)
	}
	return result, nil
}

// Delete удаляет файл владельца: сначала blob, затем метаданные
// (ссылка удаляется каскадно). Ошибка удаления blob-а не блокирует операцию.
func (s *FilesService) Delete(ctx context.Context, callerID, fileID string) error {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка получения файла: %w", err)
	}

	if file.OwnerID != callerID {
		return ErrForbidden
	}

	s.removeBlob(file.StoredName)

	if err := s.files.Delete(ctx, file.ID); err != nil {
		// Запись уже удалена параллельной очисткой
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}

	filesDeletedTotal.Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", file.ID),
		slog.String("owner_id", callerID),
	)
	return nil
}

// expirationDays возвращает срок жизни ссылки в днях, ограниченный [1, MaxDays].
func (s *FilesService) expirationDays(requested *int) int {
	days := s.policy.DefaultDays
	if requested != nil {
		days = *requested
	}
	return min(max(days, 1), max(s.policy.MaxDays, 1))
}

// removeBlob удаляет blob, ошибка только логируется.
func (s *FilesService) removeBlob(storedName string) {
	if err := s.blobs.Delete(storedName); err != nil {
		s.logger.Error("Ошибка удаления blob-а",
			slog.String("stored_name", storedName),
			slog.String("error", err.Error()),
		)
	}
}

// originalName выделяет имя файла без пути (клиенты могут прислать
// как /, так и \ в качестве разделителя). Пустое имя, "." и ".." — пустая строка.
func originalName(fileName string) string {
	name := strings.TrimSpace(fileName)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// extension возвращает расширение в нижнем регистре: текст после последней
// точки. Завершающие точки и пробелы отбрасываются. Имя, начинающееся
// с единственной точки (".bashrc"), расширения не имеет.
func extension(name string) string {
	name = strings.TrimRight(name, ". ")
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// generateToken генерирует непредсказуемый токен ссылки: 32 случайных байта в base64url.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
