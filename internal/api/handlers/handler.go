// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"net/http"

	"github.com/bigkaa/datashare/internal/api/generated"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	files  *FilesHandler
	shares *SharesHandler
	health *HealthHandler
	spec   *SpecHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	files *FilesHandler,
	shares *SharesHandler,
	health *HealthHandler,
	spec *SpecHandler,
) *APIHandler {
	return &APIHandler{
		files:  files,
		shares: shares,
		health: health,
		spec:   spec,
	}
}

// --- Файлы владельца ---

func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	h.files.UploadFile(w, r)
}

func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	h.files.ListFiles(w, r)
}

func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request, fileId generated.FileId) { //nolint:revive // имя из OpenAPI
	h.files.DeleteFile(w, r, fileId)
}

func (h *APIHandler) DeleteFileLegacy(w http.ResponseWriter, r *http.Request, fileId generated.FileId) { //nolint:revive // имя из OpenAPI
	h.files.DeleteFile(w, r, fileId)
}

// --- Публичные ссылки ---

func (h *APIHandler) GetShareMetadata(w http.ResponseWriter, r *http.Request, token generated.ShareToken) {
	h.shares.GetShareMetadata(w, r, token)
}

func (h *APIHandler) DownloadShare(w http.ResponseWriter, r *http.Request, token generated.ShareToken) {
	h.shares.DownloadShare(w, r, token)
}

// --- Health / спецификация ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	h.spec.GetOpenAPISpec(w, r)
}

// Проверка на этапе компиляции
var _ generated.ServerInterface = (*APIHandler)(nil)
