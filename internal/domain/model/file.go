// Пакет model — доменные сущности Datashare.
package model

import "time"

// FileRecord — запись загруженного файла.
// Хранится в таблице files. После создания не изменяется.
type FileRecord struct {
	// ID — UUID файла (генерируется при загрузке)
	ID string
	// OwnerID — идентификатор владельца (sub из JWT)
	OwnerID string
	// OriginalName — оригинальное имя файла
	OriginalName string
	// StoredName — имя blob-а в корневой директории хранилища
	StoredName string
	// ContentType — MIME-тип, определённый по содержимому
	ContentType string
	// SizeBytes — размер файла в байтах
	SizeBytes int64
	// CreatedAt — время загрузки
	CreatedAt time.Time
	// ExpiresAt — время истечения ссылки
	ExpiresAt time.Time
}

// IsExpired проверяет, истёк ли срок жизни файла на момент now.
func (f *FileRecord) IsExpired(now time.Time) bool {
	return !f.ExpiresAt.After(now)
}

// ShareRecord — публичная ссылка на файл.
// Хранится в таблице shares, удаляется каскадно вместе с файлом.
type ShareRecord struct {
	// ID — UUID ссылки
	ID string
	// FileID — UUID файла
	FileID string
	// Token — публичный токен для анонимного доступа
	Token string
	// DownloadCount — количество успешных скачиваний
	DownloadCount int64
	// CreatedAt — время создания ссылки
	CreatedAt time.Time
}

// FileSummary — элемент списка файлов владельца.
type FileSummary struct {
	FileID        string
	Name          string
	Size          int64
	ContentType   string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	ShareToken    string
	DownloadCount int64
}

// ShareMetadata — публичные метаданные файла, доступные по токену.
type ShareMetadata struct {
	FileName  string
	Size      int64
	ExpiresAt time.Time
}
