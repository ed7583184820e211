// Пакет dbtest — запуск PostgreSQL в Docker-контейнере для интеграционных тестов.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/datashare/internal/config"
)

// IntegrationEnv — переменная окружения, включающая интеграционные тесты.
const IntegrationEnv = "TEST_INTEGRATION"

// Start запускает PostgreSQL через testcontainers и возвращает конфигурацию
// для подключения к нему. Тест пропускается, если TEST_INTEGRATION не установлена.
func Start(t *testing.T) *config.Config {
	t.Helper()

	if testing.Short() || os.Getenv(IntegrationEnv) == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("datashare_test"),
		postgres.WithUsername("datashare"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	t.Setenv("DS_DATA_DIR", t.TempDir())
	t.Setenv("DS_METADATA_BACKEND", config.BackendPostgres)
	t.Setenv("DS_DB_HOST", host)
	t.Setenv("DS_DB_PORT", port.Port())
	t.Setenv("DS_DB_NAME", "datashare_test")
	t.Setenv("DS_DB_USER", "datashare")
	t.Setenv("DS_DB_PASSWORD", "test-password")
	t.Setenv("DS_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// Logger возвращает логгер, не засоряющий вывод тестов.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
