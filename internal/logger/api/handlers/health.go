package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/filepipe/internal/api/httperr"
)

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	service string
	version string
	// logsDir — директория журнала для проверки записи
	logsDir string
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(service, version, logsDir string) *HealthHandler {
	return &HealthHandler{
		service: service,
		version: version,
		logsDir: logsDir,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет доступность директории журнала на запись.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		status = "fail"
		httpStatus = http.StatusServiceUnavailable
	}

	httperr.WriteJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   h.service,
		"version":   h.version,
		"checks": map[string]any{
			"filesystem": fsCheck,
		},
	})
}

// checkFilesystem проверяет запись в директорию журнала.
func (h *HealthHandler) checkFilesystem() map[string]any {
	testFile := filepath.Join(h.logsDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  "fail",
			"message": "директория журнала недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)
	return map[string]any{"status": "ok"}
}
