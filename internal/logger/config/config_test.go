package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LS_LOGS_DIR", "/data/logs")
	t.Setenv("LS_JWT_SECRET", "секрет")
}

func clearOptional(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LS_CONFIG_FILE", "LS_PORT", "LS_MAX_FILES", "LS_CLEANUP_ENABLED",
		"LS_LOG_LEVEL", "LS_LOG_FORMAT", "LS_SMTP_HOST", "LS_SYSLOG_ENABLED",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	clearOptional(t)
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("Port: %d", cfg.Port)
	}
	if cfg.MaxFiles != 1000 {
		t.Errorf("MaxFiles: %d", cfg.MaxFiles)
	}
	if !cfg.CleanupEnabled {
		t.Error("CleanupEnabled должен быть включён по умолчанию")
	}
	if cfg.ExpectedIssuer != "watcher-service" {
		t.Errorf("ExpectedIssuer: %q", cfg.ExpectedIssuer)
	}
	if cfg.TokenLeeway != 30*time.Second {
		t.Errorf("TokenLeeway: %s", cfg.TokenLeeway)
	}
}

// TestLoad_MissingRequired проверяет ошибки по обязательным переменным.
func TestLoad_MissingRequired(t *testing.T) {
	for _, missing := range []string{"LS_LOGS_DIR", "LS_JWT_SECRET"} {
		t.Run(missing, func(t *testing.T) {
			clearOptional(t)
			setRequired(t)
			t.Setenv(missing, "")
			os.Unsetenv(missing)

			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка при отсутствии обязательной переменной")
			}
			if !strings.Contains(err.Error(), missing) {
				t.Errorf("ошибка должна называть переменную %s: %v", missing, err)
			}
		})
	}
}

// TestLoad_CleanupDisabled проверяет выключение ротации.
func TestLoad_CleanupDisabled(t *testing.T) {
	clearOptional(t)
	setRequired(t)
	t.Setenv("LS_CLEANUP_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}
	if cfg.CleanupEnabled {
		t.Error("CleanupEnabled должен быть выключен")
	}
}

// TestLoad_ConfigFile проверяет YAML-файл и приоритет окружения.
func TestLoad_ConfigFile(t *testing.T) {
	clearOptional(t)
	setRequired(t)

	path := filepath.Join(t.TempDir(), "logger.yaml")
	content := "max_files: 50\ncleanup_enabled: false\nport: 9000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}
	t.Setenv("LS_CONFIG_FILE", path)
	t.Setenv("LS_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки конфигурации: %v", err)
	}

	if cfg.MaxFiles != 50 {
		t.Errorf("MaxFiles из файла: %d", cfg.MaxFiles)
	}
	if cfg.CleanupEnabled {
		t.Error("CleanupEnabled из файла должен быть выключен")
	}
	if cfg.Port != 9100 {
		t.Errorf("окружение должно переопределять файл: %d", cfg.Port)
	}
}

// TestLoad_InvalidValues проверяет отказ на некорректных значениях.
func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key string
		val string
	}{
		{"LS_PORT", "очень"},
		{"LS_PORT", "70000"},
		{"LS_MAX_FILES", "тысяча"},
		{"LS_CLEANUP_ENABLED", "может быть"},
		{"LS_LOG_LEVEL", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			clearOptional(t)
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Fatalf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}
