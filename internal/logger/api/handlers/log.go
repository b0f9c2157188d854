// Package handlers — HTTP-обработчики Logger Service.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/filepipe/internal/api/httperr"
	"github.com/bigkaa/filepipe/internal/logger/logstore"
	"github.com/bigkaa/filepipe/internal/notify"
)

// maxLogBodySize — лимит тела запроса POST /log.
const maxLogBodySize = 64 * 1024

// logRequest — входящая запись о файле. Указатели отличают
// отсутствующее поле от нулевого значения.
type logRequest struct {
	Filename  *string `json:"filename"`
	CreatedAt *string `json:"created_at"`
	FileSize  *int64  `json:"file_size"`
	Hash      *string `json:"hash"`
}

// LogHandler обрабатывает POST /log.
type LogHandler struct {
	store    *logstore.Store
	stats    *Stats
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewLogHandler создаёт обработчик приёма записей журнала.
func NewLogHandler(store *logstore.Store, stats *Stats, notifier notify.Notifier, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		store:    store,
		stats:    stats,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "log_handler")),
	}
}

// CreateLog обрабатывает POST /log: валидирует запись и сохраняет её.
func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	h.stats.IncReceived()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLogBodySize+1))
	if err != nil {
		h.reject(w, "ошибка чтения тела запроса")
		return
	}
	if len(body) > maxLogBodySize {
		h.reject(w, "тело запроса превышает допустимый размер")
		return
	}

	var req logRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			h.reject(w, fmt.Sprintf("поле %s имеет некорректный тип", typeErr.Field))
			return
		}
		h.reject(w, "тело запроса не является корректным JSON")
		return
	}

	rec, msg := h.validate(req)
	if msg != "" {
		h.reject(w, msg)
		return
	}
	rec.ProcessedAt = time.Now().UTC()

	id, err := h.store.Append(rec)
	if err != nil {
		h.logger.Error("Ошибка сохранения записи журнала",
			slog.String("filename", rec.Filename),
			slog.String("error", err.Error()),
		)
		h.notifier.Notify(notify.SeverityError, "Сбой записи журнала",
			fmt.Sprintf("запись для файла %q не сохранена: %v", rec.Filename, err))
		httperr.InternalError(w, "не удалось сохранить запись журнала")
		return
	}

	h.stats.IncStored()
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"id": id})
}

// validate проверяет обязательные поля в фиксированном порядке
// и возвращает собранную запись либо текст первой ошибки.
func (h *LogHandler) validate(req logRequest) (logstore.Record, string) {
	var rec logstore.Record

	if req.Filename == nil || *req.Filename == "" {
		return rec, "отсутствует обязательное поле: filename"
	}
	if req.CreatedAt == nil || *req.CreatedAt == "" {
		return rec, "отсутствует обязательное поле: created_at"
	}
	if req.FileSize == nil {
		return rec, "отсутствует обязательное поле: file_size"
	}
	if *req.FileSize < 0 {
		return rec, "поле file_size не может быть отрицательным"
	}
	if req.Hash == nil || *req.Hash == "" {
		return rec, "отсутствует обязательное поле: hash"
	}

	rec.Filename = *req.Filename
	rec.SizeBytes = *req.FileSize
	rec.Hash = *req.Hash

	createdAt, err := time.Parse(time.RFC3339, *req.CreatedAt)
	if err != nil {
		// некорректная метка не блокирует запись, фиксируем текущее время
		h.logger.Warn("Некорректная метка created_at, используется текущее время",
			slog.String("filename", rec.Filename),
			slog.String("created_at", *req.CreatedAt),
		)
		createdAt = time.Now().UTC()
	}
	rec.CreatedAt = createdAt

	return rec, ""
}

func (h *LogHandler) reject(w http.ResponseWriter, message string) {
	h.stats.IncRejected()
	httperr.ValidationError(w, message)
}
