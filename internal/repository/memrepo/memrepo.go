// Пакет memrepo — in-memory реализация репозиториев метаданных.
// Используется в режиме DS_METADATA_BACKEND=memory и в тестах сервисов.
// Семантика совпадает с PostgreSQL-реализацией: уникальность stored_name,
// token и file_id, каскадное удаление ссылки, атомарный счётчик скачиваний.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/datashare/internal/domain/model"
	"github.com/bigkaa/datashare/internal/repository"
)

// DB — общее хранилище файлов и ссылок под одним мьютексом.
type DB struct {
	mu sync.RWMutex

	files       map[string]*model.FileRecord
	storedNames map[string]string // stored_name → file id
	shares      map[string]*model.ShareRecord
	tokens      map[string]string // token → share id
	shareByFile map[string]string // file id → share id
}

// New создаёт пустое хранилище.
func New() *DB {
	return &DB{
		files:       make(map[string]*model.FileRecord),
		storedNames: make(map[string]string),
		shares:      make(map[string]*model.ShareRecord),
		tokens:      make(map[string]string),
		shareByFile: make(map[string]string),
	}
}

// Files возвращает репозиторий файлов поверх DB.
func (db *DB) Files() repository.FileRepository {
	return &fileRepo{db: db}
}

// Shares возвращает репозиторий ссылок поверх DB.
func (db *DB) Shares() repository.ShareRepository {
	return &shareRepo{db: db}
}

// Registrar возвращает регистратор загрузок поверх DB.
func (db *DB) Registrar() repository.UploadRegistrar {
	return &registrar{db: db}
}

// --- Внутренние операции, вызываются под db.mu ---

func (db *DB) insertFile(f *model.FileRecord) error {
	if _, ok := db.files[f.ID]; ok {
		return fmt.Errorf("%w: файл с таким ID уже существует", repository.ErrConflict)
	}
	if _, ok := db.storedNames[f.StoredName]; ok {
		return fmt.Errorf("%w: blob %s уже зарегистрирован", repository.ErrConflict, f.StoredName)
	}
	cp := *f
	db.files[f.ID] = &cp
	db.storedNames[f.StoredName] = f.ID
	return nil
}

func (db *DB) checkShare(s *model.ShareRecord) error {
	if _, ok := db.files[s.FileID]; !ok {
		return fmt.Errorf("файл %s не существует", s.FileID)
	}
	if _, ok := db.shares[s.ID]; ok {
		return fmt.Errorf("%w: ссылка с таким ID уже существует", repository.ErrConflict)
	}
	if _, ok := db.tokens[s.Token]; ok {
		return fmt.Errorf("%w: нарушено ограничение shares_token_key", repository.ErrConflict)
	}
	if _, ok := db.shareByFile[s.FileID]; ok {
		return fmt.Errorf("%w: нарушено ограничение shares_file_id_key", repository.ErrConflict)
	}
	return nil
}

func (db *DB) insertShare(s *model.ShareRecord) {
	cp := *s
	db.shares[s.ID] = &cp
	db.tokens[s.Token] = s.ID
	db.shareByFile[s.FileID] = s.ID
}

// --- FileRepository ---

type fileRepo struct {
	db *DB
}

func (r *fileRepo) Create(_ context.Context, f *model.FileRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.insertFile(f)
}

func (r *fileRepo) GetByID(_ context.Context, id string) (*model.FileRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	f, ok := r.db.files[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fileRepo) GetByStoredName(_ context.Context, storedName string) (*model.FileRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.storedNames[storedName]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.db.files[id]
	return &cp, nil
}

func (r *fileRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.FileRecord, error) {
	r.db.mu.RLock()
	var result []*model.FileRecord
	for _, f := range r.db.files {
		if f.OwnerID == ownerID {
			cp := *f
			result = append(result, &cp)
		}
	}
	r.db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fileRepo) ListExpiredBefore(_ context.Context, before time.Time, afterID string, limit int) ([]*model.FileRecord, error) {
	if afterID == "" {
		afterID = uuid.Nil.String()
	}

	r.db.mu.RLock()
	var result []*model.FileRecord
	for _, f := range r.db.files {
		if !f.ExpiresAt.After(before) && f.ID > afterID {
			cp := *f
			result = append(result, &cp)
		}
	}
	r.db.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fileRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	f, ok := r.db.files[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.db.files, id)
	delete(r.db.storedNames, f.StoredName)

	// ON DELETE CASCADE
	if shareID, ok := r.db.shareByFile[id]; ok {
		s := r.db.shares[shareID]
		delete(r.db.tokens, s.Token)
		delete(r.db.shares, shareID)
		delete(r.db.shareByFile, id)
	}
	return nil
}

// --- ShareRepository ---

type shareRepo struct {
	db *DB
}

func (r *shareRepo) Create(_ context.Context, s *model.ShareRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.checkShare(s); err != nil {
		return err
	}
	r.db.insertShare(s)
	return nil
}

func (r *shareRepo) GetByToken(_ context.Context, token string) (*model.ShareRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.db.shares[id]
	return &cp, nil
}

func (r *shareRepo) GetByFileID(_ context.Context, fileID string) (*model.ShareRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	id, ok := r.db.shareByFile[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.db.shares[id]
	return &cp, nil
}

func (r *shareRepo) ListByFileIDs(_ context.Context, fileIDs []string) (map[string]*model.ShareRecord, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	result := make(map[string]*model.ShareRecord, len(fileIDs))
	for _, fileID := range fileIDs {
		if id, ok := r.db.shareByFile[fileID]; ok {
			cp := *r.db.shares[id]
			result[fileID] = &cp
		}
	}
	return result, nil
}

func (r *shareRepo) IncrementDownloadCount(_ context.Context, shareID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.shares[shareID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	s.DownloadCount++
	return s.DownloadCount, nil
}

// --- UploadRegistrar ---

type registrar struct {
	db *DB
}

// RegisterUpload вставляет файл и ссылку под одной блокировкой:
// при конфликте ни одна из записей не сохраняется.
func (r *registrar) RegisterUpload(_ context.Context, f *model.FileRecord, s *model.ShareRecord) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.insertFile(f); err != nil {
		return err
	}
	if err := r.db.checkShare(s); err != nil {
		delete(r.db.files, f.ID)
		delete(r.db.storedNames, f.StoredName)
		return err
	}
	r.db.insertShare(s)
	return nil
}
