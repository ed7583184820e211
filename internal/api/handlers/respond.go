package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
	"github.com/bigkaa/datashare/internal/service"
)

// writeJSON сериализует body в ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// ErrValidation проверяется первой: пустой файл помечен и ErrValidation,
// и ErrStorage.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrRejectedExtension):
		apierrors.RejectedExtension(w, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Файл принадлежит другому пользователю")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrExpired):
		apierrors.Expired(w, "Срок действия ссылки истёк")
	case errors.Is(err, service.ErrStorage):
		logger.Error("Ошибка хранилища", slog.String("error", err.Error()))
		apierrors.StorageError(w, "Ошибка сохранения файла")
	default:
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
