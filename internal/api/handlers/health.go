// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/datashare/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// ReadinessChecker — проверка готовности зависимости
// (PostgreSQL, директория данных).
type ReadinessChecker interface {
	Name() string
	CheckReady(ctx context.Context) (status string, message string)
}

// DependencyHealth — состояние зависимостей из topologymetrics.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version  string
	checkers []ReadinessChecker
	// deps — опционально, только для информации в ответе ready
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil.
func NewHealthHandler(deps DependencyHealth, checkers ...ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:  config.Version,
		checkers: checkers,
		deps:     deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "datashare",
	})
}

// HealthReady обрабатывает GET /health/ready.
// Любая неуспешная проверка даёт 503.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	checks := make(map[string]any, len(h.checkers))
	for _, c := range h.checkers {
		status, message := c.CheckReady(r.Context())
		checks[c.Name()] = map[string]any{
			"status":  status,
			"message": message,
		}
		if status != "ok" {
			overallStatus = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "datashare",
		"checks":    checks,
	}
	if h.deps != nil {
		resp["dependencies"] = h.deps.Health()
	}

	writeJSON(w, httpStatus, resp)
}
