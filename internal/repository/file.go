package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/datashare/internal/domain/model"
)

// FileRepository — интерфейс доступа к таблице files.
type FileRepository interface {
	// Create создаёт запись файла.
	Create(ctx context.Context, f *model.FileRecord) error
	// GetByID возвращает файл по UUID.
	GetByID(ctx context.Context, id string) (*model.FileRecord, error)
	// GetByStoredName возвращает файл по имени blob-а.
	GetByStoredName(ctx context.Context, storedName string) (*model.FileRecord, error)
	// ListByOwner возвращает файлы владельца в порядке загрузки.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error)
	// ListExpiredBefore возвращает до limit файлов с expires_at <= before
	// и id > afterID, упорядоченных по id (keyset-пагинация).
	ListExpiredBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*model.FileRecord, error)
	// Delete удаляет файл (ссылка удаляется каскадно).
	// Возвращает ErrNotFound, если запись уже удалена.
	Delete(ctx context.Context, id string) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, owner_id, original_name, stored_name, content_type, size_bytes, created_at, expires_at`

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	query := `
		INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		f.ID, f.OwnerID, f.OriginalName, f.StoredName, f.ContentType,
		f.SizeBytes, f.CreatedAt, f.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID или именем blob-а уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания файла: %w", err)
	}
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*model.FileRecord, error) {
	if !validUUID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRow(ctx, query, id))
}

func (r *fileRepo) GetByStoredName(ctx context.Context, storedName string) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE stored_name = $1`
	return scanFile(r.db.QueryRow(ctx, query, storedName))
}

func (r *fileRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.FileRecord, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE owner_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) ListExpiredBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*model.FileRecord, error) {
	if afterID == "" {
		afterID = uuid.Nil.String()
	}
	query := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE expires_at <= $1 AND id > $2
		ORDER BY id
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, before, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения просроченных файлов: %w", err)
	}
	return collectFiles(rows)
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFile сканирует одну строку files.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	err := row.Scan(
		&f.ID, &f.OwnerID, &f.OriginalName, &f.StoredName, &f.ContentType,
		&f.SizeBytes, &f.CreatedAt, &f.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// collectFiles читает все строки результата и закрывает rows.
func collectFiles(rows pgx.Rows) ([]*model.FileRecord, error) {
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
