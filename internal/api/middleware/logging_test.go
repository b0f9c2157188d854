package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// statusHandler отвечает заданным статусом и телом.
func statusHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
}

// logRecord разбирает единственную JSON-строку лога.
func logRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("ошибка разбора строки лога: %v (%s)", err, buf.String())
	}
	return rec
}

// TestRequestLogger_LevelByStatusClass проверяет выбор уровня
// логирования по классу статус-кода.
func TestRequestLogger_LevelByStatusClass(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "INFO"},
		{"клиентская ошибка", http.StatusBadRequest, "WARN"},
		{"серверная ошибка", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
			rec := httptest.NewRecorder()
			RequestLogger(logger)(statusHandler(tt.status, "ответ")).ServeHTTP(rec, req)

			entry := logRecord(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("уровень: %v, ожидался %s", entry["level"], tt.wantLevel)
			}
			if entry["status"].(float64) != float64(tt.status) {
				t.Errorf("статус: %v", entry["status"])
			}
		})
	}
}

// TestRequestLogger_Fields проверяет состав полей строки лога.
func TestRequestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodPost, "/log", nil)
	rec := httptest.NewRecorder()
	RequestLogger(logger)(statusHandler(http.StatusOK, "тело ответа")).ServeHTTP(rec, req)

	entry := logRecord(t, &buf)
	if entry["component"] != "http" {
		t.Errorf("component: %v", entry["component"])
	}
	if entry["method"] != http.MethodPost {
		t.Errorf("method: %v", entry["method"])
	}
	if entry["path"] != "/log" {
		t.Errorf("path: %v", entry["path"])
	}
	if entry["bytes"].(float64) != float64(len("тело ответа")) {
		t.Errorf("bytes: %v", entry["bytes"])
	}
	if _, ok := entry["duration"]; !ok {
		t.Error("в строке лога отсутствует duration")
	}
}

// TestStatusWriter_DefaultStatus проверяет статус 200 по умолчанию,
// когда обработчик не вызывает WriteHeader.
func TestStatusWriter_DefaultStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ок"))
	})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	RequestLogger(logger)(handler).ServeHTTP(rec, req)

	entry := logRecord(t, &buf)
	if entry["status"].(float64) != http.StatusOK {
		t.Errorf("статус по умолчанию: %v", entry["status"])
	}
}
