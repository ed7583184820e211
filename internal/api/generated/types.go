// Пакет generated — типы и chi-маршрутизация HTTP API Datashare
// в раскладке oapi-codegen (chi-server) по контракту openapi.yaml.
package generated

import "time"

// BearerAuthScopes — ключ контекста, которым помечаются операции,
// требующие JWT (securityScheme bearerAuth).
const BearerAuthScopes = "bearerAuth.Scopes"

// FileId — идентификатор файла в пути.
type FileId = string //nolint:revive // имя из OpenAPI

// ShareToken — токен публичной ссылки в пути.
type ShareToken = string

// UploadResponse — ответ на загрузку файла.
type UploadResponse struct {
	FileId     string    `json:"fileId"` //nolint:revive // имя из OpenAPI
	ShareToken string    `json:"shareToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// FileSummary — элемент списка файлов владельца.
type FileSummary struct {
	FileId        string    `json:"fileId"` //nolint:revive // имя из OpenAPI
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	ContentType   string    `json:"contentType,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ShareToken    string    `json:"shareToken"`
	DownloadCount int64     `json:"downloadCount"`
}

// ShareMetadata — публичные метаданные файла по ссылке.
type ShareMetadata struct {
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}
