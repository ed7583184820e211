// Пакет config — загрузка и валидация конфигурации Datashare
// из переменных окружения (опционально — из .env и TOML-файла политики).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранения метаданных.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// DefaultForbiddenExtensions — расширения исполняемых файлов и скриптов,
// загрузка которых запрещена.
var DefaultForbiddenExtensions = []string{
	"exe", "msi", "bat", "cmd", "ps1", "vbs", "js", "jar", "com", "scr", "dll", "sys",
}

// Config содержит все параметры конфигурации Datashare.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория хранения blob-ов
	DataDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

	// --- Метаданные ---

	// Бэкенд метаданных: postgres или memory
	MetadataBackend string
	DBHost          string
	DBPort          int
	DBName          string
	DBUser          string
	DBPassword      string
	DBSSLMode       string

	// --- JWT ---

	// URL JWKS endpoint провайдера идентификации (пусто — аутентификация недоступна)
	JWKSURL string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACert string
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration

	// --- Политика ссылок ---

	// Срок жизни ссылки по умолчанию, дней
	ShareDefaultDays int
	// Максимальный срок жизни ссылки, дней
	ShareMaxDays int
	// Запрещённые расширения (без точки, в нижнем регистре)
	ForbiddenExtensions []string

	// --- Очистка ---

	// Интервал запуска очистки просроченных файлов
	SweepInterval time.Duration
	// Размер страницы при выборке просроченных записей
	SweepBatchSize int
	// Количество параллельных удалений внутри страницы
	SweepConcurrency int
	// Удалять blob-ы без записи в реестре
	OrphanScan bool
	// Минимальный возраст blob-а без записи, после которого он считается мусором
	OrphanGrace time.Duration

	// --- Эксплуатация ---

	LogLevel  slog.Level
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
// Если задан DS_ENV_FILE, переменные сначала подгружаются из него
// (уже заданные в окружении не перезаписываются). Если задан DS_POLICY_FILE,
// политика ссылок из TOML-файла перекрывает значения из окружения.
func Load() (*Config, error) {
	if envFile := os.Getenv("DS_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("DS_ENV_FILE: %w", err)
		}
	}

	cfg := &Config{}
	var err error

	// DS_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("DS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("DS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// DS_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("DS_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// DS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB, допускается "500MB")
	cfg.MaxFileSize, err = getEnvBytes("DS_MAX_FILE_SIZE", 1<<30)
	if err != nil {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("DS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// DS_METADATA_BACKEND — postgres (по умолчанию) или memory
	cfg.MetadataBackend = getEnvDefault("DS_METADATA_BACKEND", BackendPostgres)
	switch cfg.MetadataBackend {
	case BackendPostgres:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("DS_METADATA_BACKEND: недопустимое значение %q, допустимые: postgres, memory", cfg.MetadataBackend)
	}

	// DS_JWKS_URL — URL JWKS провайдера идентификации
	cfg.JWKSURL = getEnvDefault("DS_JWKS_URL", "")
	cfg.JWKSCACert = getEnvDefault("DS_JWKS_CA_CERT", "")

	cfg.JWTLeeway, err = getEnvDuration("DS_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("DS_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DS_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// DS_SHARE_DEFAULT_DAYS / DS_SHARE_MAX_DAYS — срок жизни ссылки (по умолчанию 7/7)
	cfg.ShareDefaultDays, err = getEnvInt("DS_SHARE_DEFAULT_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("DS_SHARE_DEFAULT_DAYS: %w", err)
	}
	cfg.ShareMaxDays, err = getEnvInt("DS_SHARE_MAX_DAYS", 7)
	if err != nil {
		return nil, fmt.Errorf("DS_SHARE_MAX_DAYS: %w", err)
	}

	// DS_FORBIDDEN_EXTENSIONS — список через запятую
	cfg.ForbiddenExtensions = normalizeExtensions(parseCSV(getEnvDefault("DS_FORBIDDEN_EXTENSIONS", "")))
	if len(cfg.ForbiddenExtensions) == 0 {
		cfg.ForbiddenExtensions = append([]string(nil), DefaultForbiddenExtensions...)
	}

	// DS_POLICY_FILE — TOML-файл политики, перекрывает значения выше
	if policyFile := os.Getenv("DS_POLICY_FILE"); policyFile != "" {
		if err := applyPolicyFile(cfg, policyFile); err != nil {
			return nil, fmt.Errorf("DS_POLICY_FILE: %w", err)
		}
	}

	if cfg.ShareMaxDays < 1 {
		return nil, fmt.Errorf("DS_SHARE_MAX_DAYS: значение должно быть >= 1, получено %d", cfg.ShareMaxDays)
	}
	if cfg.ShareDefaultDays < 1 || cfg.ShareDefaultDays > cfg.ShareMaxDays {
		return nil, fmt.Errorf("DS_SHARE_DEFAULT_DAYS: значение %d должно быть в диапазоне 1-%d",
			cfg.ShareDefaultDays, cfg.ShareMaxDays)
	}

	// DS_SWEEP_INTERVAL — интервал очистки (по умолчанию 1h)
	cfg.SweepInterval, err = getEnvDuration("DS_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_SWEEP_INTERVAL: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("DS_SWEEP_INTERVAL: значение должно быть положительным")
	}

	cfg.SweepBatchSize, err = getEnvInt("DS_SWEEP_BATCH_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("DS_SWEEP_BATCH_SIZE: %w", err)
	}
	if cfg.SweepBatchSize < 1 {
		return nil, fmt.Errorf("DS_SWEEP_BATCH_SIZE: значение должно быть положительным")
	}

	cfg.SweepConcurrency, err = getEnvInt("DS_SWEEP_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("DS_SWEEP_CONCURRENCY: %w", err)
	}
	if cfg.SweepConcurrency < 1 {
		return nil, fmt.Errorf("DS_SWEEP_CONCURRENCY: значение должно быть положительным")
	}

	cfg.OrphanScan, err = getEnvBool("DS_ORPHAN_SCAN", true)
	if err != nil {
		return nil, fmt.Errorf("DS_ORPHAN_SCAN: %w", err)
	}
	cfg.OrphanGrace, err = getEnvDuration("DS_ORPHAN_GRACE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DS_ORPHAN_GRACE: %w", err)
	}

	// DS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DS_LOG_LEVEL: %w", err)
	}

	// DS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("DS_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.DephealthCheckInterval, err = getEnvDuration("DS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("DS_DEPHEALTH_GROUP", "datashare")

	return cfg, nil
}

// loadDatabase читает параметры подключения к PostgreSQL.
func loadDatabase(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("DS_DB_HOST")
	if err != nil {
		return err
	}
	cfg.DBPort, err = getEnvInt("DS_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("DS_DB_PORT: %w", err)
	}
	cfg.DBName, err = getEnvRequired("DS_DB_NAME")
	if err != nil {
		return err
	}
	cfg.DBUser, err = getEnvRequired("DS_DB_USER")
	if err != nil {
		return err
	}
	cfg.DBPassword, err = getEnvRequired("DS_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("DS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("DS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения (для метрик и golang-migrate без схемы драйвера).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	logger := slog.New(newHandler(os.Stdout, cfg))
	slog.SetDefault(logger)
	return logger
}

// newHandler создаёт JSON-обработчик или цветной текстовый (tint) для локального запуска.
func newHandler(w io.Writer, cfg *Config) slog.Handler {
	if cfg.LogFormat == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.DateTime,
	})
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBytes возвращает размер в байтах. Допускает как число, так и
// человекочитаемую запись ("100MB", "1 GiB").
func getEnvBytes(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := humanize.ParseBytes(val)
	if err != nil {
		return 0, fmt.Errorf("некорректный размер: %q", val)
	}
	if n > uint64(1<<62) {
		return 0, fmt.Errorf("слишком большой размер: %q", val)
	}
	return int64(n), nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// normalizeExtensions приводит расширения к виду "exe": без точки, в нижнем регистре.
func normalizeExtensions(exts []string) []string {
	result := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			result = append(result, e)
		}
	}
	return result
}
