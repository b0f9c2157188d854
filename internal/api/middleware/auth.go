// auth.go — JWT middleware для аутентификации входящих запросов.
// Использует HS256 с общим секретом (internal/token).
// Claims: iss (издатель), iat, exp. Публичные endpoints (health, metrics)
// монтируются вне этого middleware.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bigkaa/filepipe/internal/api/httperr"
	"github.com/bigkaa/filepipe/internal/token"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIssuer — ключ для iss из JWT в контексте запроса.
const ContextKeyIssuer contextKey = "jwt_issuer"

// JWTAuth — middleware для JWT-аутентификации по общему секрету.
type JWTAuth struct {
	tokens         *token.Service
	expectedIssuer string
	logger         *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
// tokens — сервис валидации токенов, expectedIssuer — обязательное значение iss.
func NewJWTAuth(tokens *token.Service, expectedIssuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		tokens:         tokens,
		expectedIssuer: expectedIssuer,
		logger:         logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Извлекает Bearer token из заголовка Authorization, валидирует подпись,
// exp и iss, помещает издателя в контекст запроса.
// В ответах 401 указывается причина отказа; сам токен и секрет
// никогда не попадают ни в ответ, ни в логи.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httperr.Unauthorized(w, "отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httperr.Unauthorized(w, "неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			raw := parts[1]
			if raw == "" {
				httperr.Unauthorized(w, "пустой Bearer token")
				return
			}

			claims, err := j.tokens.Validate(raw, j.expectedIssuer)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("reason", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				httperr.Unauthorized(w, authFailureMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIssuer, claims.Issuer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authFailureMessage возвращает текст причины отказа для клиента.
// Причины различимы (просрочен / подпись / издатель / формат),
// но не раскрывают деталей конфигурации.
func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "срок действия токена истёк"
	case errors.Is(err, token.ErrSignature):
		return "подпись токена невалидна"
	case errors.Is(err, token.ErrIssuer):
		return "издатель токена не совпадает с ожидаемым"
	default:
		return "токен имеет некорректный формат"
	}
}

// IssuerFromContext извлекает iss из контекста запроса.
// Возвращает пустую строку, если издатель не найден.
func IssuerFromContext(ctx context.Context) string {
	issuer, _ := ctx.Value(ContextKeyIssuer).(string)
	return issuer
}
