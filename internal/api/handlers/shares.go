// shares.go — публичные endpoints ссылок: метаданные и скачивание.
package handlers

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/bigkaa/datashare/internal/api/generated"
	"github.com/bigkaa/datashare/internal/service"
)

// SharesHandler — обработчик публичных endpoints ссылок.
type SharesHandler struct {
	shares *service.SharesService
	logger *slog.Logger
}

// NewSharesHandler создаёт обработчик ссылок.
func NewSharesHandler(shares *service.SharesService, logger *slog.Logger) *SharesHandler {
	return &SharesHandler{
		shares: shares,
		logger: logger.With(slog.String("component", "shares_handler")),
	}
}

// GetShareMetadata обрабатывает GET /api/share/{token}.
func (h *SharesHandler) GetShareMetadata(w http.ResponseWriter, r *http.Request, token string) {
	meta, err := h.shares.Metadata(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generated.ShareMetadata{
		FileName:  meta.FileName,
		Size:      meta.Size,
		ExpiresAt: meta.ExpiresAt,
	})
}

// DownloadShare обрабатывает GET /api/download/{token}.
// Отдаёт содержимое как attachment с оригинальным именем.
// Range-запросы обслуживаются http.ServeContent.
func (h *SharesHandler) DownloadShare(w http.ResponseWriter, r *http.Request, token string) {
	dl, err := h.shares.Download(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer dl.Content.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(dl.FileName))
	w.Header().Set("X-Download-Count", strconv.FormatInt(dl.DownloadCount, 10))

	http.ServeContent(w, r, dl.FileName, dl.ModTime, dl.Content)
}

// contentDisposition формирует заголовок attachment. Имена вне ASCII
// кодируются как filename* (RFC 2231).
func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}
