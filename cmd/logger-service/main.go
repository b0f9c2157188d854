// Точка входа Logger Service — приём и хранение записей журнала
// об обработанных файлах.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/filepipe/internal/api/middleware"
	"github.com/bigkaa/filepipe/internal/logger/api/handlers"
	"github.com/bigkaa/filepipe/internal/logger/config"
	"github.com/bigkaa/filepipe/internal/logger/logstore"
	"github.com/bigkaa/filepipe/internal/notify"
	"github.com/bigkaa/filepipe/internal/server"
	"github.com/bigkaa/filepipe/internal/token"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Logger Service запускается",
		slog.String("version", config.Version),
		slog.String("logs_dir", cfg.LogsDir),
		slog.Int("max_files", cfg.MaxFiles),
		slog.Bool("cleanup_enabled", cfg.CleanupEnabled),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Сервис проверки JWT
	tokens, err := token.NewService(cfg.JWTSecret, cfg.ExpectedIssuer, 0, 0, cfg.TokenLeeway, logger)
	if err != nil {
		logger.Error("Ошибка инициализации сервиса токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Каналы уведомлений
	notifier := buildNotifier(cfg, logger)

	// 3. Хранилище файлов журнала
	store, err := logstore.New(cfg.LogsDir, cfg.MaxFiles, cfg.CleanupEnabled, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. HTTP-маршруты
	stats := handlers.NewStats()
	router := handlers.NewRouter(
		handlers.NewLogHandler(store, stats, notifier, logger),
		handlers.NewHealthHandler("logger-service", config.Version, cfg.LogsDir),
		handlers.NewStatsHandler(stats, store),
		middleware.NewJWTAuth(tokens, cfg.ExpectedIssuer, logger),
		middleware.RequestLogger(logger),
		middleware.Metrics("ls"),
	)

	srv := server.New(cfg.Port, router, cfg.ShutdownTimeout, logger)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Logger Service остановлен")
}

// buildNotifier собирает каналы уведомлений согласно конфигурации.
func buildNotifier(cfg *config.Config, logger *slog.Logger) notify.Notifier {
	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}

	if cfg.SMTPHost != "" {
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			To:       cfg.SMTPTo,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, logger))
		logger.Info("Почтовый канал уведомлений включён", slog.String("host", cfg.SMTPHost))
	}
	if cfg.SyslogEnabled {
		notifiers = append(notifiers, notify.NewSyslogNotifier(cfg.SyslogTag, logger))
		logger.Info("Syslog-канал уведомлений включён", slog.String("tag", cfg.SyslogTag))
	}

	return notify.NewDeduper(notify.NewMulti(logger, notifiers...), cfg.NotifyDedupWindow)
}
