package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/datashare/internal/domain/model"
)

// ShareRepository — интерфейс доступа к таблице shares.
type ShareRepository interface {
	// Create создаёт ссылку. Конфликт токена или file_id — ErrConflict.
	Create(ctx context.Context, s *model.ShareRecord) error
	// GetByToken возвращает ссылку по токену.
	GetByToken(ctx context.Context, token string) (*model.ShareRecord, error)
	// GetByFileID возвращает ссылку файла.
	GetByFileID(ctx context.Context, fileID string) (*model.ShareRecord, error)
	// ListByFileIDs возвращает ссылки указанных файлов, ключ — file_id.
	ListByFileIDs(ctx context.Context, fileIDs []string) (map[string]*model.ShareRecord, error)
	// IncrementDownloadCount атомарно увеличивает счётчик скачиваний
	// и возвращает новое значение.
	IncrementDownloadCount(ctx context.Context, shareID string) (int64, error)
}

// shareRepo — реализация ShareRepository.
type shareRepo struct {
	db DBTX
}

// NewShareRepository создаёт репозиторий ссылок.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepo{db: db}
}

const shareColumns = `id, file_id, token, download_count, created_at`

func (r *shareRepo) Create(ctx context.Context, s *model.ShareRecord) error {
	query := `
		INSERT INTO shares (` + shareColumns + `)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, s.ID, s.FileID, s.Token, s.DownloadCount, s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: нарушено ограничение %s", ErrConflict, constraintName(err))
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (r *shareRepo) GetByToken(ctx context.Context, token string) (*model.ShareRecord, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE token = $1`
	return scanShare(r.db.QueryRow(ctx, query, token))
}

func (r *shareRepo) GetByFileID(ctx context.Context, fileID string) (*model.ShareRecord, error) {
	if !validUUID(fileID) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + shareColumns + ` FROM shares WHERE file_id = $1`
	return scanShare(r.db.QueryRow(ctx, query, fileID))
}

func (r *shareRepo) ListByFileIDs(ctx context.Context, fileIDs []string) (map[string]*model.ShareRecord, error) {
	result := make(map[string]*model.ShareRecord, len(fileIDs))
	if len(fileIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + shareColumns + ` FROM shares WHERE file_id = ANY($1::uuid[])`

	rows, err := r.db.Query(ctx, query, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ссылок: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result[s.FileID] = s
	}
	return result, rows.Err()
}

func (r *shareRepo) IncrementDownloadCount(ctx context.Context, shareID string) (int64, error) {
	if !validUUID(shareID) {
		return 0, ErrNotFound
	}
	query := `
		UPDATE shares
		SET download_count = download_count + 1
		WHERE id = $1
		RETURNING download_count`

	var count int64
	err := r.db.QueryRow(ctx, query, shareID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка увеличения счётчика скачиваний: %w", err)
	}
	return count, nil
}

// scanShare сканирует одну строку shares.
func scanShare(row pgx.Row) (*model.ShareRecord, error) {
	s := &model.ShareRecord{}
	err := row.Scan(&s.ID, &s.FileID, &s.Token, &s.DownloadCount, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return s, nil
}
