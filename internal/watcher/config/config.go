// Пакет config — загрузка и валидация конфигурации Watcher Service
// из переменных окружения с опциональным YAML-файлом значений по умолчанию.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Watcher Service.
type Config struct {
	// Порт служебного HTTP-сервера
	Port int
	// Путь к наблюдаемой директории
	WatchDir string
	// Путь к директории обработанных файлов.
	// Должна находиться на той же файловой системе, что и WatchDir.
	ProcessedDir string
	// URL endpoint приёма записей Logger Service
	LoggerURL string
	// Общий секрет подписи JWT. Не логируется.
	JWTSecret string
	// Издатель выпускаемых токенов
	Issuer string
	// Время жизни токена
	TokenTTL time.Duration
	// Запас до истечения, после которого токен перевыпускается
	TokenMargin time.Duration

	// Интервал опроса директории
	PollInterval time.Duration
	// Пауза после обнаружения файла перед обработкой
	SettleDelay time.Duration
	// Количество параллельно обрабатываемых файлов
	Parallelism int
	// Подстроки имён служебных файлов, которые пропускаются
	IgnoredFiles []string
	// Лимит попыток доставки до карантина
	MaxAttempts int

	// Таймаут одного HTTP-запроса к Logger Service
	RequestTimeout time.Duration
	// Количество повторов при временных сбоях внутри одного тика
	RetryMax int
	// Базовая пауза экспоненциального отката
	RetryBackoff time.Duration

	// Окно подавления повторных уведомлений
	NotifyDedupWindow time.Duration
	// SMTP-настройки почтовых уведомлений (пустой Host выключает канал)
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPTo       []string
	SMTPUsername string
	SMTPPassword string
	// Включение syslog-канала уведомлений
	SyslogEnabled bool
	// Тег syslog-сообщений
	SyslogTag string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// fileConfig — значения по умолчанию из YAML-файла (WS_CONFIG_FILE).
// Переменные окружения имеют приоритет. Секрет задаётся только окружением.
type fileConfig struct {
	Port          int    `yaml:"port"`
	WatchDir      string `yaml:"watch_dir"`
	ProcessedDir  string `yaml:"processed_dir"`
	LoggerURL     string `yaml:"logger_url"`
	PollInterval  string `yaml:"poll_interval"`
	SettleDelay   string `yaml:"settle_delay"`
	Parallelism   int    `yaml:"parallelism"`
	IgnoredFiles  string `yaml:"ignored_files"`
	MaxAttempts   int    `yaml:"max_attempts"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	SMTPFrom      string `yaml:"smtp_from"`
	SMTPTo        string `yaml:"smtp_to"`
	SyslogEnabled bool   `yaml:"syslog_enabled"`
	SyslogTag     string `yaml:"syslog_tag"`
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	fc, err := loadFileConfig(os.Getenv("WS_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// WS_PORT — порт служебного HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("WS_PORT", orInt(fc.Port, 8080))
	if err != nil {
		return nil, fmt.Errorf("WS_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("WS_PORT: значение %d вне допустимого диапазона", port)
	}
	cfg.Port = port

	// WS_WATCH_DIR — обязательный
	cfg.WatchDir = getEnvDefault("WS_WATCH_DIR", fc.WatchDir)
	if cfg.WatchDir == "" {
		return nil, fmt.Errorf("WS_WATCH_DIR: обязательная переменная окружения не задана")
	}

	// WS_PROCESSED_DIR — обязательный
	cfg.ProcessedDir = getEnvDefault("WS_PROCESSED_DIR", fc.ProcessedDir)
	if cfg.ProcessedDir == "" {
		return nil, fmt.Errorf("WS_PROCESSED_DIR: обязательная переменная окружения не задана")
	}
	if cfg.ProcessedDir == cfg.WatchDir {
		return nil, fmt.Errorf("WS_PROCESSED_DIR: не может совпадать с WS_WATCH_DIR")
	}

	// WS_LOGGER_URL — обязательный
	cfg.LoggerURL = getEnvDefault("WS_LOGGER_URL", fc.LoggerURL)
	if cfg.LoggerURL == "" {
		return nil, fmt.Errorf("WS_LOGGER_URL: обязательная переменная окружения не задана")
	}

	// WS_JWT_SECRET — обязательный, только из окружения
	cfg.JWTSecret, err = getEnvRequired("WS_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// WS_JWT_ISSUER — издатель токенов (по умолчанию "watcher-service")
	cfg.Issuer = getEnvDefault("WS_JWT_ISSUER", "watcher-service")

	// WS_JWT_TTL — время жизни токена (по умолчанию 5m)
	cfg.TokenTTL, err = getEnvDuration("WS_JWT_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WS_JWT_TTL: %w", err)
	}

	// WS_JWT_REFRESH_MARGIN — запас до перевыпуска (по умолчанию 30s)
	cfg.TokenMargin, err = getEnvDuration("WS_JWT_REFRESH_MARGIN", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WS_JWT_REFRESH_MARGIN: %w", err)
	}
	if cfg.TokenMargin >= cfg.TokenTTL {
		return nil, fmt.Errorf("WS_JWT_REFRESH_MARGIN: запас %s не может превышать время жизни %s",
			cfg.TokenMargin, cfg.TokenTTL)
	}

	// WS_POLL_INTERVAL — интервал опроса директории (по умолчанию 3s)
	cfg.PollInterval, err = getEnvDuration("WS_POLL_INTERVAL", orDuration(fc.PollInterval, 3*time.Second))
	if err != nil {
		return nil, fmt.Errorf("WS_POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("WS_POLL_INTERVAL: значение должно быть положительным")
	}

	// WS_SETTLE_DELAY — пауза перед обработкой нового файла (по умолчанию 500ms)
	cfg.SettleDelay, err = getEnvDuration("WS_SETTLE_DELAY", orDuration(fc.SettleDelay, 500*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("WS_SETTLE_DELAY: %w", err)
	}

	// WS_PARALLELISM — количество параллельных обработчиков (по умолчанию 4)
	cfg.Parallelism, err = getEnvInt("WS_PARALLELISM", orInt(fc.Parallelism, 4))
	if err != nil {
		return nil, fmt.Errorf("WS_PARALLELISM: %w", err)
	}
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("WS_PARALLELISM: значение должно быть положительным")
	}

	// WS_IGNORED_FILES — список пропускаемых имён через запятую
	ignored := getEnvDefault("WS_IGNORED_FILES",
		orString(fc.IgnoredFiles, ".gitkeep,.gitignore,.DS_Store,Thumbs.db"))
	cfg.IgnoredFiles = splitList(ignored)

	// WS_MAX_ATTEMPTS — лимит попыток до карантина (по умолчанию 5)
	cfg.MaxAttempts, err = getEnvInt("WS_MAX_ATTEMPTS", orInt(fc.MaxAttempts, 5))
	if err != nil {
		return nil, fmt.Errorf("WS_MAX_ATTEMPTS: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("WS_MAX_ATTEMPTS: значение должно быть положительным")
	}

	// WS_REQUEST_TIMEOUT — таймаут запроса к Logger Service (по умолчанию 10s)
	cfg.RequestTimeout, err = getEnvDuration("WS_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WS_REQUEST_TIMEOUT: %w", err)
	}

	// WS_RETRY_MAX — количество повторов внутри одного тика (по умолчанию 3)
	cfg.RetryMax, err = getEnvInt("WS_RETRY_MAX", 3)
	if err != nil {
		return nil, fmt.Errorf("WS_RETRY_MAX: %w", err)
	}

	// WS_RETRY_BACKOFF — базовая пауза отката (по умолчанию 1s)
	cfg.RetryBackoff, err = getEnvDuration("WS_RETRY_BACKOFF", time.Second)
	if err != nil {
		return nil, fmt.Errorf("WS_RETRY_BACKOFF: %w", err)
	}

	// WS_NOTIFY_DEDUP_WINDOW — окно подавления уведомлений (по умолчанию 15m)
	cfg.NotifyDedupWindow, err = getEnvDuration("WS_NOTIFY_DEDUP_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("WS_NOTIFY_DEDUP_WINDOW: %w", err)
	}

	// WS_SMTP_* — почтовый канал уведомлений (выключен без WS_SMTP_HOST)
	cfg.SMTPHost = getEnvDefault("WS_SMTP_HOST", fc.SMTPHost)
	cfg.SMTPPort, err = getEnvInt("WS_SMTP_PORT", orInt(fc.SMTPPort, 25))
	if err != nil {
		return nil, fmt.Errorf("WS_SMTP_PORT: %w", err)
	}
	cfg.SMTPFrom = getEnvDefault("WS_SMTP_FROM", fc.SMTPFrom)
	cfg.SMTPTo = splitList(getEnvDefault("WS_SMTP_TO", fc.SMTPTo))
	cfg.SMTPUsername = getEnvDefault("WS_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("WS_SMTP_PASSWORD", "")
	if cfg.SMTPHost != "" && (cfg.SMTPFrom == "" || len(cfg.SMTPTo) == 0) {
		return nil, fmt.Errorf("WS_SMTP_HOST: при включённой почте требуются WS_SMTP_FROM и WS_SMTP_TO")
	}

	// WS_SYSLOG_ENABLED — syslog-канал уведомлений (по умолчанию выключен)
	cfg.SyslogEnabled, err = getEnvBool("WS_SYSLOG_ENABLED", fc.SyslogEnabled)
	if err != nil {
		return nil, fmt.Errorf("WS_SYSLOG_ENABLED: %w", err)
	}
	cfg.SyslogTag = getEnvDefault("WS_SYSLOG_TAG", orString(fc.SyslogTag, "watcher-service"))

	// WS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("WS_LOG_LEVEL", orString(fc.LogLevel, "info")))
	if err != nil {
		return nil, fmt.Errorf("WS_LOG_LEVEL: %w", err)
	}

	// WS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("WS_LOG_FORMAT", orString(fc.LogFormat, "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("WS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// WS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("WS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadFileConfig читает YAML-файл значений по умолчанию.
// Пустой путь означает отсутствие файла.
func loadFileConfig(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("WS_CONFIG_FILE: ошибка чтения файла %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("WS_CONFIG_FILE: ошибка разбора YAML %q: %w", path, err)
	}
	return fc, nil
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 500ms, 3s, 1h)", val)
	}
	return d, nil
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

// splitList разбирает список значений через запятую, отбрасывая пустые.
func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func orDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
