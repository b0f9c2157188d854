// Точка входа Watcher Service — наблюдение за директорией и доставка
// метаданных файлов в Logger Service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/filepipe/internal/api/middleware"
	"github.com/bigkaa/filepipe/internal/notify"
	"github.com/bigkaa/filepipe/internal/server"
	"github.com/bigkaa/filepipe/internal/token"
	"github.com/bigkaa/filepipe/internal/watcher/api/handlers"
	"github.com/bigkaa/filepipe/internal/watcher/config"
	"github.com/bigkaa/filepipe/internal/watcher/loggerclient"
	"github.com/bigkaa/filepipe/internal/watcher/mover"
	"github.com/bigkaa/filepipe/internal/watcher/track"
	"github.com/bigkaa/filepipe/internal/watcher/watch"
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
	logger.Info("Watcher Service запускается",
		slog.String("version", config.Version),
		slog.String("watch_dir", cfg.WatchDir),
		slog.String("processed_dir", cfg.ProcessedDir),
		slog.String("logger_url", cfg.LoggerURL),
		slog.Int("port", cfg.Port),
	)

	// --- Инициализация компонентов ---

	// 1. Сервис выпуска JWT
	tokens, err := token.NewService(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTL, cfg.TokenMargin, 0, logger)
	if err != nil {
		logger.Error("Ошибка инициализации сервиса токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Каналы уведомлений
	notifier := buildNotifier(cfg, logger)

	// 3. HTTP-клиент Logger Service
	client := loggerclient.New(loggerclient.Config{
		URL:            cfg.LoggerURL,
		RequestTimeout: cfg.RequestTimeout,
		RetryMax:       cfg.RetryMax,
		RetryBackoff:   cfg.RetryBackoff,
	}, tokens, logger)

	// Стартовая проверка доступности Logger Service.
	// Недоступность не фатальна: доставка повторяется на тиках.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		logger.Warn("Logger Service недоступен при старте",
			slog.String("error", err.Error()),
		)
	}
	cancelPing()

	// 4. Перемещение обработанных файлов
	mv, err := mover.New(cfg.ProcessedDir)
	if err != nil {
		logger.Error("Ошибка инициализации Mover", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Реестр отслеживаемых файлов и статистика
	reg := track.NewRegistry(cfg.MaxAttempts)
	stats := watch.NewStats()

	// 6. Цикл наблюдения
	watchSvc := watch.NewService(watch.Config{
		WatchDir:     cfg.WatchDir,
		PollInterval: cfg.PollInterval,
		SettleDelay:  cfg.SettleDelay,
		Parallelism:  cfg.Parallelism,
		IgnoredFiles: cfg.IgnoredFiles,
	}, reg, client, mv, notifier, stats, logger)
	watchSvc.Start(context.Background())

	// 7. Служебный HTTP-сервер
	router := handlers.NewRouter(
		handlers.NewHealthHandler("watcher-service", config.Version, cfg.WatchDir),
		handlers.NewStatsHandler(stats, reg),
		middleware.RequestLogger(logger),
		middleware.Metrics("ws"),
	)

	srv := server.New(cfg.Port, router, cfg.ShutdownTimeout, logger)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		watchSvc.Stop()
		os.Exit(1)
	}

	watchSvc.Stop()
	logger.Info("Watcher Service остановлен")
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
