package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
)

// RecoverPanic перехватывает panic в обработчике и отвечает 500.
func RecoverPanic(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic в обработчике",
						slog.String("error", fmt.Sprint(rec)),
						slog.String("path", normalizePath(r.URL.Path)),
						slog.String("stack", string(debug.Stack())),
					)
					w.Header().Set("Connection", "close")
					apierrors.InternalError(w, "Внутренняя ошибка сервера")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
