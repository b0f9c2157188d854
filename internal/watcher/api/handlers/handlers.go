// Package handlers — служебные HTTP-обработчики Watcher Service.
package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filepipe/internal/api/httperr"
	"github.com/bigkaa/filepipe/internal/watcher/track"
	"github.com/bigkaa/filepipe/internal/watcher/watch"
)

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	service  string
	version  string
	watchDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(service, version, watchDir string) *HealthHandler {
	return &HealthHandler{
		service:  service,
		version:  version,
		watchDir: watchDir,
	}
}

// HealthLive обрабатывает GET /health/live.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность наблюдаемой директории на чтение.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	dirCheck := map[string]any{"status": "ok"}
	if _, err := os.ReadDir(h.watchDir); err != nil {
		dirCheck = map[string]any{
			"status":  "fail",
			"message": "наблюдаемая директория недоступна: " + err.Error(),
		}
		status = "fail"
		httpStatus = http.StatusServiceUnavailable
	}

	httperr.WriteJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
		"checks": map[string]any{
			"watch_dir": dirCheck,
		},
	})
}

// StatsHandler отдаёт GET /api/v1/stats и GET /api/v1/files.
type StatsHandler struct {
	stats *watch.Stats
	reg   *track.Registry
}

// NewStatsHandler создаёт обработчик статистики.
func NewStatsHandler(stats *watch.Stats, reg *track.Registry) *StatsHandler {
	return &StatsHandler{stats: stats, reg: reg}
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	snap := h.stats.Snapshot()
	resp := map[string]any{
		"total_processed": snap.TotalProcessed,
		"today_processed": snap.TodayProcessed,
		"failed":          snap.Failed,
		"success_rate":    snap.SuccessRate,
		"uptime_seconds":  snap.UptimeSeconds,
		"pending":         h.reg.Pending(),
		"quarantined":     h.reg.CountByState(track.StateQuarantined),
	}
	httperr.WriteJSON(w, http.StatusOK, resp)
}

// GetFiles обрабатывает GET /api/v1/files: текущее состояние
// отслеживаемых файлов.
func (h *StatsHandler) GetFiles(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]any{
		"files": h.reg.Snapshot(),
	})
}

// NewRouter собирает служебные маршруты Watcher Service.
func NewRouter(
	health *HealthHandler,
	stats *StatsHandler,
	commonMiddlewares ...func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()

	for _, mw := range commonMiddlewares {
		router.Use(mw)
	}

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/api/v1/stats", stats.GetStats)
	router.Get("/api/v1/files", stats.GetFiles)
	router.Handle("/metrics", promhttp.Handler())

	return router
}
