// Пакет blobstore — хранение содержимого файлов в одной корневой директории.
// Обеспечивает streaming-запись через temp файл с атомарным rename,
// проверку выхода за пределы корня, чтение и идемпотентное удаление.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Ошибки хранилища blob-ов.
var (
	// ErrEmptyBlob — попытка сохранить пустое содержимое.
	ErrEmptyBlob = errors.New("пустое содержимое файла")
	// ErrPathEscape — вычисленный путь выходит за пределы корневой директории.
	ErrPathEscape = errors.New("путь выходит за пределы директории хранения")
	// ErrNotFound — blob отсутствует на диске.
	ErrNotFound = errors.New("blob не найден")
)

const (
	// sniffLen — сколько первых байт передаётся в mimetype для определения типа.
	sniffLen = 3072
	// maxNameRunes — ограничение длины очищенного имени в stored name.
	maxNameRunes = 100
	// tempPattern — шаблон имён временных файлов загрузки.
	tempPattern = ".upload-*"
)

// Store — хранилище blob-ов поверх afero.Fs.
type Store struct {
	fs   afero.Fs
	root string
}

// StoreResult — результат сохранения blob-а.
type StoreResult struct {
	// StoredName — уникальное имя blob-а внутри корня
	StoredName string
	// Size — количество записанных байт
	Size int64
	// ContentType — MIME-тип, определённый по содержимому
	ContentType string
}

// BlobInfo — информация о blob-е на диске.
type BlobInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// New создаёт Store поверх переданной файловой системы. Корень приводится
// к абсолютному пути и создаётся, если не существует.
func New(fs afero.Fs, root string) (*Store, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("не удалось вычислить абсолютный путь %s: %w", root, err)
	}
	if err := fs.MkdirAll(absRoot, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", absRoot, err)
	}
	return &Store{fs: fs, root: absRoot}, nil
}

// NewOS создаёт Store на файловой системе ОС.
func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

// Root возвращает абсолютный путь корневой директории.
func (s *Store) Root() string {
	return s.root
}

// Store записывает содержимое reader под новым уникальным именем
// вида {uuid}_{очищенное имя}.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *Store) Store(r io.Reader, suggestedName string) (*StoreResult, error) {
	// Первые байты нужны для определения типа и проверки на пустоту
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("ошибка чтения данных: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyBlob
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	storedName := generateStoredName(suggestedName)
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return nil, err
	}

	f, err := afero.TempFile(s.fs, s.root, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename поверх возможного существующего файла
	if err := s.fs.Rename(tmpPath, fullPath); err != nil {
		s.fs.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &StoreResult{
		StoredName:  storedName,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть результат.
func (s *Store) Open(storedName string) (io.ReadSeekCloser, *BlobInfo, error) {
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return nil, nil, err
	}

	f, err := s.fs.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, storedName)
		}
		return nil, nil, fmt.Errorf("ошибка открытия файла %s: %w", storedName, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("ошибка получения информации о файле %s: %w", storedName, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, storedName)
	}

	return f, &BlobInfo{Name: storedName, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete удаляет blob. Отсутствующий файл — не ошибка.
func (s *Store) Delete(storedName string) error {
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return err
	}

	err = s.fs.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storedName, err)
	}
	return nil
}

// Exists проверяет наличие blob-а.
func (s *Store) Exists(storedName string) bool {
	fullPath, err := s.resolve(storedName)
	if err != nil {
		return false
	}
	info, err := s.fs.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// List возвращает все файлы в корне (поддиректории пропускаются).
func (s *Store) List() ([]BlobInfo, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.root, err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		blobs = append(blobs, BlobInfo{Name: e.Name(), Size: e.Size(), ModTime: e.ModTime()})
	}
	return blobs, nil
}

// resolve вычисляет абсолютный путь blob-а и проверяет, что его
// родительская директория в точности совпадает с корнем.
func (s *Store) resolve(storedName string) (string, error) {
	fullPath := filepath.Clean(filepath.Join(s.root, storedName))
	if filepath.Dir(fullPath) != s.root {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, storedName)
	}
	return fullPath, nil
}

// generateStoredName генерирует имя blob-а.
// Формат: {uuid}_{name}
// Пример: 3f0c9a5e-8b1d-4c7a-9e2f-0a1b2c3d4e5f_report.pdf
func generateStoredName(suggestedName string) string {
	name := sanitize(filepath.Base(suggestedName))
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return uuid.New().String() + "_" + name
}

// sanitize убирает небезопасные символы из имени файла.
// Оставляет буквы, цифры, точку, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// Name возвращает имя компонента для readiness-проверки.
func (s *Store) Name() string {
	return "filesystem"
}

// CheckReady проверяет, что корневая директория доступна на запись.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *Store) CheckReady(_ context.Context) (status string, message string) {
	f, err := afero.TempFile(s.fs, s.root, ".health-*")
	if err != nil {
		return "fail", fmt.Sprintf("директория данных недоступна для записи: %v", err)
	}
	name := f.Name()
	_ = f.Close()
	_ = s.fs.Remove(name)
	return "ok", "директория доступна на запись"
}
