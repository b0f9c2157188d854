// Пакет token — выпуск и валидация JWT для аутентификации между сервисами.
//
// Подпись симметричная (HS256) общим секретом. Claims: iss, iat, exp.
// Service кэширует один выпущенный токен на процесс и перевыпускает его,
// когда до истечения остаётся меньше запаса (margin) — грани check-and-refresh
// защищены мьютексом, чтобы два конкурентных вызова не выпустили два токена.
//
// Секрет никогда не попадает в логи и не возвращается из методов.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Причины отказа валидации. Проверяются через errors.Is.
var (
	// ErrMalformed — строка не является корректным JWT.
	ErrMalformed = errors.New("токен имеет некорректный формат")
	// ErrSignature — подпись не совпадает с общим секретом.
	ErrSignature = errors.New("подпись токена невалидна")
	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("срок действия токена истёк")
	// ErrIssuer — claim iss не совпадает с ожидаемым издателем.
	ErrIssuer = errors.New("издатель токена не совпадает с ожидаемым")
)

// Service — выпуск и валидация токенов с кэшированием.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	margin time.Duration
	leeway time.Duration
	logger *slog.Logger

	// Кэш выпущенного токена
	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewService создаёт сервис токенов.
// issuer — значение claim iss для выпускаемых токенов.
// ttl — срок действия выпускаемого токена.
// margin — запас до истечения, при котором кэшированный токен перевыпускается.
// leeway — допустимое отклонение времени при валидации.
func NewService(secret, issuer string, ttl, margin, leeway time.Duration, logger *slog.Logger) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("секрет подписи токенов не задан")
	}

	return &Service{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		margin: margin,
		leeway: leeway,
		logger: logger.With(slog.String("component", "token_service")),
	}, nil
}

// Token возвращает актуальный подписанный токен, перевыпуская при необходимости.
// Токен перевыпускается, когда до истечения остаётся меньше margin.
// Два вызова внутри запаса возвращают идентичную строку токена.
func (s *Service) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Проверяем кэш: если токен валиден ещё margin — используем его
	if s.cached != "" && time.Now().Add(s.margin).Before(s.expires) {
		return s.cached, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}

	s.cached = signed
	s.expires = now.Add(s.ttl)

	s.logger.Debug("Токен перевыпущен",
		slog.Time("expires_at", s.expires),
	)

	return signed, nil
}

// Invalidate сбрасывает кэшированный токен.
// Вызывается клиентом доставки после ответа 401, чтобы следующий
// вызов Token выпустил свежий токен.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = ""
	s.expires = time.Time{}
}

// Validate проверяет подпись, срок действия и издателя токена.
// Возвращает claims при успехе или одну из ошибок-причин:
// ErrMalformed, ErrSignature, ErrExpired, ErrIssuer.
func (s *Service) Validate(raw, expectedIssuer string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
		}
	}

	if claims.Issuer != expectedIssuer {
		return nil, ErrIssuer
	}

	return claims, nil
}
