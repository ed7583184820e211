// metrics.go — Prometheus HTTP метрики Datashare.
// Регистрирует метрики: ds_http_requests_total, ds_http_request_duration_seconds.
// Бизнес-метрики (ds_uploads_total, ds_sweep_* и др.) регистрируются
// в сервисном слое.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ds_http_requests_total",
			Help: "Общее количество HTTP-запросов к Datashare",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ds_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Datashare в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// dynamicPrefixes — префиксы путей, последний сегмент которых — идентификатор.
var dynamicPrefixes = []struct {
	prefix  string
	pattern string
}{
	{"/api/files/delete/", "/api/files/delete/{fileId}"},
	{"/api/files/", "/api/files/{fileId}"},
	{"/api/share/", "/api/share/{token}"},
	{"/api/download/", "/api/download/{token}"},
}

// normalizePath заменяет идентификаторы и токены в пути на шаблон:
// ограничивает кардинальность метрик и не раскрывает токены в логах.
// /api/download/Xy12... → /api/download/{token}
func normalizePath(path string) string {
	switch path {
	case "/api/files", "/api/files/upload":
		return path
	}
	for _, p := range dynamicPrefixes {
		if rest, ok := strings.CutPrefix(path, p.prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return p.pattern
		}
	}
	return path
}
