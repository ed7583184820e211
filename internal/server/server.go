// Пакет server — HTTP-сервер Datashare с graceful shutdown.
// Без TLS — TLS termination на ingress/API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/datashare/internal/api/errors"
	"github.com/bigkaa/datashare/internal/api/generated"
	"github.com/bigkaa/datashare/internal/api/middleware"
	"github.com/bigkaa/datashare/internal/config"
)

// Server — HTTP-сервер Datashare.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с маршрутами и middleware.
// handler — реализация generated.ServerInterface, auth — аутентификация
// операций с bearerAuth, validator — проверка параметров по OpenAPI.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler generated.ServerInterface,
	auth middleware.Authenticator,
	validator *middleware.RequestValidator,
) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(logger, handler, auth, validator),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-маршрутизатор со всеми endpoints.
// Глобальная цепочка: recover → metrics → request log.
// Для операций: bearerAuth (только где требуется) → OpenAPI-валидация.
func NewRouter(
	logger *slog.Logger,
	handler generated.ServerInterface,
	auth middleware.Authenticator,
	validator *middleware.RequestValidator,
) http.Handler {
	router := chi.NewRouter()

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Ресурс не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Метод не поддерживается")
	})

	// Prometheus /metrics — вне OpenAPI-контракта
	router.Handle("/metrics", promhttp.Handler())

	// Порядок: последний элемент выполняется первым
	opMiddlewares := []generated.MiddlewareFunc{validator.Middleware()}
	if auth != nil {
		opMiddlewares = append(opMiddlewares, bearerAuthOnly(auth))
	}

	generated.HandlerWithOptions(handler, generated.ChiServerOptions{
		BaseRouter:  router,
		Middlewares: opMiddlewares,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.ValidationError(w, err.Error())
		},
	})

	return alice.New(
		middleware.RecoverPanic(logger),
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	).Then(router)
}

// bearerAuthOnly применяет auth только к операциям, помеченным
// generated.BearerAuthScopes. Публичные операции проходят без JWT.
func bearerAuthOnly(auth middleware.Authenticator) generated.MiddlewareFunc {
	authMiddleware := auth.Middleware()

	return func(next http.Handler) http.Handler {
		protected := authMiddleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Value(generated.BearerAuthScopes) == nil {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает отмены ctx или сигнала завершения (SIGINT, SIGTERM).
// После этого выполняется graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Получен сигнал завершения")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
