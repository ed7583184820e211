// files.go — HTTP handlers файлов владельца: загрузка, список, удаление.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
	"github.com/bigkaa/datashare/internal/api/generated"
	"github.com/bigkaa/datashare/internal/api/middleware"
	"github.com/bigkaa/datashare/internal/service"
)

const (
	// multipartMemory — сколько multipart-данных держать в памяти,
	// остальное уходит во временные файлы.
	multipartMemory = 32 << 20
	// multipartOverhead — запас на заголовки частей и поля формы сверх MaxFileSize.
	multipartOverhead = 1 << 20
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	files       *service.FilesService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(files *service.FilesService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:       files,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// UploadFile обрабатывает POST /api/files/upload.
// Multipart form: file (обязательно), expirationDays (опционально).
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	var expirationDays *int
	if raw := strings.TrimSpace(r.FormValue("expirationDays")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			apierrors.ValidationError(w, "Поле 'expirationDays' должно быть целым числом")
			return
		}
		expirationDays = &days
	}

	result, err := h.files.Upload(r.Context(), service.UploadParams{
		OwnerID:        subject,
		FileName:       header.Filename,
		Size:           header.Size,
		Reader:         file,
		ExpirationDays: expirationDays,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, generated.UploadResponse{
		FileId:     result.FileID,
		ShareToken: result.ShareToken,
		ExpiresAt:  result.ExpiresAt,
	})
}

// ListFiles обрабатывает GET /api/files.
// Возвращает файлы вызывающего в порядке загрузки.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())

	items, err := h.files.List(r.Context(), subject)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := make([]generated.FileSummary, 0, len(items))
	for _, it := range items {
		resp = append(resp, generated.FileSummary{
			FileId:        it.FileID,
			Name:          it.Name,
			Size:          it.Size,
			ContentType:   it.ContentType,
			CreatedAt:     it.CreatedAt,
			ExpiresAt:     it.ExpiresAt,
			ShareToken:    it.ShareToken,
			DownloadCount: it.DownloadCount,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteFile обрабатывает DELETE /api/files/{fileId}
// и устаревший POST /api/files/delete/{fileId}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request, fileID string) {
	subject := middleware.SubjectFromContext(r.Context())

	if err := h.files.Delete(r.Context(), subject, fileID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Файл удалён"})
}
