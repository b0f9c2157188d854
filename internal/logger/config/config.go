// Пакет config — загрузка и валидация конфигурации Logger Service
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

// Config содержит все параметры конфигурации Logger Service.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории файлов журнала
	LogsDir string
	// Общий секрет проверки подписи JWT. Не логируется.
	JWTSecret string
	// Ожидаемый издатель входящих токенов
	ExpectedIssuer string
	// Допуск рассинхронизации часов при проверке срока действия
	TokenLeeway time.Duration

	// Максимальное количество файлов журнала (<= 0 — без лимита)
	MaxFiles int
	// Автоматическое удаление старых файлов при достижении лимита
	CleanupEnabled bool

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

// fileConfig — значения по умолчанию из YAML-файла (LS_CONFIG_FILE).
// Переменные окружения имеют приоритет. Секрет задаётся только окружением.
type fileConfig struct {
	Port           int    `yaml:"port"`
	LogsDir        string `yaml:"logs_dir"`
	MaxFiles       int    `yaml:"max_files"`
	CleanupEnabled *bool  `yaml:"cleanup_enabled"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	SMTPHost       string `yaml:"smtp_host"`
	SMTPPort       int    `yaml:"smtp_port"`
	SMTPFrom       string `yaml:"smtp_from"`
	SMTPTo         string `yaml:"smtp_to"`
	SyslogEnabled  bool   `yaml:"syslog_enabled"`
	SyslogTag      string `yaml:"syslog_tag"`
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	fc, err := loadFileConfig(os.Getenv("LS_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}

	// LS_PORT — порт HTTP-сервера (по умолчанию 8081)
	port, err := getEnvInt("LS_PORT", orInt(fc.Port, 8081))
	if err != nil {
		return nil, fmt.Errorf("LS_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("LS_PORT: значение %d вне допустимого диапазона", port)
	}
	cfg.Port = port

	// LS_LOGS_DIR — обязательный
	cfg.LogsDir = getEnvDefault("LS_LOGS_DIR", fc.LogsDir)
	if cfg.LogsDir == "" {
		return nil, fmt.Errorf("LS_LOGS_DIR: обязательная переменная окружения не задана")
	}

	// LS_JWT_SECRET — обязательный, только из окружения
	cfg.JWTSecret, err = getEnvRequired("LS_JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// LS_JWT_ISSUER — ожидаемый издатель (по умолчанию "watcher-service")
	cfg.ExpectedIssuer = getEnvDefault("LS_JWT_ISSUER", "watcher-service")

	// LS_JWT_LEEWAY — допуск рассинхронизации часов (по умолчанию 30s)
	cfg.TokenLeeway, err = getEnvDuration("LS_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_JWT_LEEWAY: %w", err)
	}

	// LS_MAX_FILES — лимит файлов журнала (по умолчанию 1000)
	cfg.MaxFiles, err = getEnvInt("LS_MAX_FILES", orInt(fc.MaxFiles, 1000))
	if err != nil {
		return nil, fmt.Errorf("LS_MAX_FILES: %w", err)
	}

	// LS_CLEANUP_ENABLED — автоматическая ротация (по умолчанию включена)
	cleanupDefault := true
	if fc.CleanupEnabled != nil {
		cleanupDefault = *fc.CleanupEnabled
	}
	cfg.CleanupEnabled, err = getEnvBool("LS_CLEANUP_ENABLED", cleanupDefault)
	if err != nil {
		return nil, fmt.Errorf("LS_CLEANUP_ENABLED: %w", err)
	}

	// LS_NOTIFY_DEDUP_WINDOW — окно подавления уведомлений (по умолчанию 15m)
	cfg.NotifyDedupWindow, err = getEnvDuration("LS_NOTIFY_DEDUP_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LS_NOTIFY_DEDUP_WINDOW: %w", err)
	}

	// LS_SMTP_* — почтовый канал уведомлений (выключен без LS_SMTP_HOST)
	cfg.SMTPHost = getEnvDefault("LS_SMTP_HOST", fc.SMTPHost)
	cfg.SMTPPort, err = getEnvInt("LS_SMTP_PORT", orInt(fc.SMTPPort, 25))
	if err != nil {
		return nil, fmt.Errorf("LS_SMTP_PORT: %w", err)
	}
	cfg.SMTPFrom = getEnvDefault("LS_SMTP_FROM", fc.SMTPFrom)
	cfg.SMTPTo = splitList(getEnvDefault("LS_SMTP_TO", fc.SMTPTo))
	cfg.SMTPUsername = getEnvDefault("LS_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("LS_SMTP_PASSWORD", "")
	if cfg.SMTPHost != "" && (cfg.SMTPFrom == "" || len(cfg.SMTPTo) == 0) {
		return nil, fmt.Errorf("LS_SMTP_HOST: при включённой почте требуются LS_SMTP_FROM и LS_SMTP_TO")
	}

	// LS_SYSLOG_ENABLED — syslog-канал уведомлений (по умолчанию выключен)
	cfg.SyslogEnabled, err = getEnvBool("LS_SYSLOG_ENABLED", fc.SyslogEnabled)
	if err != nil {
		return nil, fmt.Errorf("LS_SYSLOG_ENABLED: %w", err)
	}
	cfg.SyslogTag = getEnvDefault("LS_SYSLOG_TAG", orString(fc.SyslogTag, "logger-service"))

	// LS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LS_LOG_LEVEL", orString(fc.LogLevel, "info")))
	if err != nil {
		return nil, fmt.Errorf("LS_LOG_LEVEL: %w", err)
	}

	// LS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LS_LOG_FORMAT", orString(fc.LogFormat, "json"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// LS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("LS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LS_SHUTDOWN_TIMEOUT: %w", err)
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
		return nil, fmt.Errorf("LS_CONFIG_FILE: ошибка чтения файла %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("LS_CONFIG_FILE: ошибка разбора YAML %q: %w", path, err)
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 15m, 1h)", val)
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
