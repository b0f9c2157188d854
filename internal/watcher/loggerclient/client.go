// Пакет loggerclient — HTTP-клиент доставки метаданных в Logger Service.
//
// Семантика доставки at-least-once: 2xx — метаданные durably записаны;
// 401 — перевыпуск токена и один повтор; прочие 4xx — терминальная ошибка
// (payload не станет валиднее от повторов); 5xx, сетевые ошибки и таймауты —
// транзиентные, ограниченное число повторов с экспоненциальным backoff
// внутри одного вызова Deliver, дальше файл откладывается до следующего
// цикла опроса.
package loggerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bigkaa/filepipe/internal/token"
	"github.com/bigkaa/filepipe/internal/watcher/metadata"
)

// AuthError — отказ аутентификации, повторившийся после перевыпуска токена.
// Терминальная ошибка для цикла файла.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("аутентификация отклонена (статус %d): %s", e.Status, e.Message)
}

// TerminalError — невосстановимый отказ (4xx кроме 401): payload отклонён.
// Файл помещается в карантин, повторы бессмысленны.
type TerminalError struct {
	Status  int
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("доставка отклонена (статус %d): %s", e.Status, e.Message)
}

// TransientError — транзиентный сбой (5xx, сеть, таймаут).
// Файл остаётся pending и будет повторён на следующем цикле.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("транзиентный сбой доставки: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// payload — тело POST /log.
type payload struct {
	Filename  string `json:"filename"`
	CreatedAt string `json:"created_at"`
	FileSize  int64  `json:"file_size"`
	Hash      string `json:"hash"`
}

// deliverResponse — успешный ответ Logger Service.
type deliverResponse struct {
	ID string `json:"id"`
}

// errorResponse — тело ответа ошибки Logger Service.
type errorResponse struct {
	Error string `json:"error"`
}

// Config — параметры клиента доставки.
type Config struct {
	// URL — полный endpoint приёма метаданных (например, http://logger:8081/log)
	URL string
	// RequestTimeout — таймаут одной HTTP-попытки
	RequestTimeout time.Duration
	// RetryMax — число повторов транзиентных сбоев внутри одного Deliver
	RetryMax int
	// RetryBackoff — базовая задержка backoff (удваивается с каждым повтором)
	RetryBackoff time.Duration
}

// Client — HTTP-клиент Logger Service.
type Client struct {
	httpClient *http.Client
	cfg        Config
	tokens     *token.Service
	logger     *slog.Logger
}

// New создаёт клиент доставки.
// tokens — сервис выпуска JWT для заголовка Authorization.
func New(cfg Config, tokens *token.Service, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		tokens:     tokens,
		logger:     logger.With(slog.String("component", "logger_client")),
	}
}

// Deliver отправляет метаданные файла в Logger Service.
// Возвращает nil при 2xx (метаданные durably записаны), иначе одну из
// типизированных ошибок: AuthError, TerminalError, TransientError.
func (c *Client) Deliver(ctx context.Context, meta *metadata.Metadata) error {
	body, err := json.Marshal(payload{
		Filename:  meta.Filename,
		CreatedAt: meta.CreatedAt.Format(time.RFC3339),
		FileSize:  meta.Size,
		Hash:      meta.Hash,
	})
	if err != nil {
		return fmt.Errorf("сериализация метаданных: %w", err)
	}

	authRetried := false

	for attempt := 0; ; attempt++ {
		status, respBody, err := c.post(ctx, body)

		switch {
		case err != nil:
			// Сетевой сбой или таймаут — транзиентный
			if attempt < c.cfg.RetryMax {
				if werr := c.backoff(ctx, attempt, err.Error()); werr != nil {
					return &TransientError{Err: werr}
				}
				continue
			}
			return &TransientError{Err: err}

		case status >= 200 && status < 300:
			var resp deliverResponse
			if jerr := json.Unmarshal(respBody, &resp); jerr == nil && resp.ID != "" {
				c.logger.Debug("Метаданные доставлены",
					slog.String("filename", meta.Filename),
					slog.String("log_id", resp.ID),
				)
			}
			return nil

		case status == http.StatusUnauthorized:
			// Перевыпускаем токен и повторяем один раз
			if !authRetried {
				authRetried = true
				c.tokens.Invalidate()
				c.logger.Warn("Получен 401, перевыпуск токена и повтор",
					slog.String("filename", meta.Filename),
				)
				continue
			}
			return &AuthError{Status: status, Message: errorMessage(respBody)}

		case status >= 400 && status < 500:
			return &TerminalError{Status: status, Message: errorMessage(respBody)}

		default:
			// 5xx — транзиентный
			serr := fmt.Errorf("Logger Service вернул статус %d: %s", status, errorMessage(respBody))
			if attempt < c.cfg.RetryMax {
				if werr := c.backoff(ctx, attempt, serr.Error()); werr != nil {
					return &TransientError{Err: werr}
				}
				continue
			}
			return &TransientError{Err: serr}
		}
	}
}

// post выполняет одну HTTP-попытку. Возвращает статус и тело ответа.
func (c *Client) post(ctx context.Context, body []byte) (int, []byte, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return 0, nil, fmt.Errorf("получение токена: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("запрос к %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, respBody, nil
}

// backoff ждёт экспоненциальную задержку перед повтором.
// Прерывается отменой контекста.
func (c *Client) backoff(ctx context.Context, attempt int, reason string) error {
	delay := c.cfg.RetryBackoff << attempt

	c.logger.Warn("Транзиентный сбой доставки, повтор",
		slog.Int("attempt", attempt+1),
		slog.Int("retry_max", c.cfg.RetryMax),
		slog.Duration("delay", delay),
		slog.String("reason", reason),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// errorMessage извлекает поле error из тела ответа.
// Возвращает усечённое сырое тело, если JSON не разбирается.
func errorMessage(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != "" {
		return resp.Error
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// healthURL строит адрес health endpoint от базы настроенного URL доставки:
// путь заменяется целиком, завершающие слэши и нестандартные пути не ломают адрес.
func (c *Client) healthURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("разбор URL доставки %q: %w", c.cfg.URL, err)
	}
	u.Path = "/health/live"
	u.RawQuery = ""
	return u.String(), nil
}

// Ping проверяет доступность Logger Service через его health endpoint.
// Используется при старте watcher — недоступность логируется, но не фатальна.
func (c *Client) Ping(ctx context.Context) error {
	healthURL, err := c.healthURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса health: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос health к %s: %w", healthURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Logger Service вернул статус %d", resp.StatusCode)
	}
	return nil
}
