// Пакет watch — цикл наблюдения за директорией.
//
// Опрос poll-and-diff: на каждом тике директория сканируется, новые пути
// регистрируются в реестре, исчезнувшие забываются, готовые к обработке
// проходят цикл извлечение → доставка → перемещение. Событийные API
// файловой системы не используются намеренно: опрос детерминирован,
// переносим и не зависит от гарантий доставки событий ОС.
//
// Циклы разных путей выполняются конкурентно через errgroup с лимитом
// параллелизма; инвариант «не больше одного цикла на путь» обеспечивает
// реестр track.Registry. Ошибка одного файла никогда не прерывает тик
// для остальных.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/filepipe/internal/notify"
	"github.com/bigkaa/filepipe/internal/watcher/loggerclient"
	"github.com/bigkaa/filepipe/internal/watcher/metadata"
	"github.com/bigkaa/filepipe/internal/watcher/mover"
	"github.com/bigkaa/filepipe/internal/watcher/track"
)

// Prometheus метрики watcher
var (
	// filesProcessedTotal — количество успешно обработанных файлов.
	filesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_files_processed_total",
		Help: "Общее количество успешно обработанных файлов",
	})

	// filesFailedTotal — количество завершившихся ошибкой циклов.
	filesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_files_failed_total",
		Help: "Общее количество циклов обработки, завершившихся ошибкой",
	})

	// filesQuarantinedTotal — количество файлов, помещённых в карантин.
	filesQuarantinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_files_quarantined_total",
		Help: "Общее количество файлов, помещённых в карантин",
	})

	// filesPending — текущее количество файлов, ожидающих обработки.
	filesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_files_pending",
		Help: "Текущее количество файлов, ожидающих обработки",
	})

	// tickDurationSeconds — длительность одного тика опроса.
	tickDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ws_tick_duration_seconds",
		Help:    "Длительность одного цикла опроса в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Config — параметры цикла наблюдения.
type Config struct {
	// WatchDir — наблюдаемая директория
	WatchDir string
	// PollInterval — интервал опроса
	PollInterval time.Duration
	// SettleDelay — пауза после обнаружения файла, чтобы запись успела завершиться
	SettleDelay time.Duration
	// Parallelism — максимум конкурентных циклов обработки
	Parallelism int
	// IgnoredFiles — подстроки имён служебных файлов, которые пропускаются
	IgnoredFiles []string
}

// Service — фоновый цикл наблюдения за директорией.
type Service struct {
	cfg      Config
	reg      *track.Registry
	client   *loggerclient.Client
	mover    *mover.Mover
	notifier notify.Notifier
	stats    *Stats
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	// защита от параллельного запуска RunOnce
	runMu sync.Mutex
}

// NewService создаёт цикл наблюдения.
func NewService(
	cfg Config,
	reg *track.Registry,
	client *loggerclient.Client,
	mv *mover.Mover,
	notifier notify.Notifier,
	stats *Stats,
	logger *slog.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		reg:      reg,
		client:   client,
		mover:    mv,
		notifier: notifier,
		stats:    stats,
		logger:   logger.With(slog.String("component", "watch")),
	}
}

// Start запускает фоновую горутину с периодическим тикером.
// Вызывается один раз при старте приложения.
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info("Наблюдение запущено",
		slog.String("watch_dir", s.cfg.WatchDir),
		slog.String("interval", s.cfg.PollInterval.String()),
		slog.Int("parallelism", s.cfg.Parallelism),
	)
}

// Stop останавливает цикл и дожидается завершения текущего тика.
// Выполняющиеся доставки завершаются или прерываются отменой контекста;
// незавершённые файлы остаются discovered/failed и безопасно повторяются
// после рестарта (доставка at-least-once).
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.logger.Info("Наблюдение остановлено")
}

// run — основной цикл фоновой горутины.
func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	// Первый тик — сразу после старта
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один тик опроса: сканирование, синхронизация реестра,
// конкурентная обработка готовых путей. Потокобезопасен.
func (s *Service) RunOnce(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()

	present, err := s.scan()
	if err != nil {
		s.logger.Error("Ошибка сканирования директории",
			slog.String("watch_dir", s.cfg.WatchDir),
			slog.String("error", err.Error()),
		)
		return
	}

	s.syncRegistry(present)

	eligible := s.reg.Eligible(time.Now(), s.cfg.SettleDelay)
	if len(eligible) > 0 {
		s.logger.Debug("Файлы к обработке",
			slog.Int("count", len(eligible)),
		)
	}

	// Конкурентная обработка с лимитом параллелизма.
	// processFile всегда возвращает nil: ошибка одного файла
	// не отменяет обработку остальных.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for _, path := range eligible {
		path := path
		g.Go(func() error {
			s.processFile(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	filesPending.Set(float64(s.reg.Pending()))
	tickDurationSeconds.Observe(time.Since(start).Seconds())
}

// scan возвращает множество файлов в наблюдаемой директории,
// пропуская поддиректории и служебные файлы.
func (s *Service) scan() (map[string]bool, error) {
	entries, err := os.ReadDir(s.cfg.WatchDir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s.ignored(entry.Name()) {
			continue
		}
		present[filepath.Join(s.cfg.WatchDir, entry.Name())] = true
	}
	return present, nil
}

// ignored проверяет имя файла по списку служебных шаблонов.
func (s *Service) ignored(name string) bool {
	for _, pattern := range s.cfg.IgnoredFiles {
		if pattern != "" && strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// syncRegistry приводит реестр к фактическому содержимому директории:
// новые пути регистрируются, исчезнувшие забываются.
func (s *Service) syncRegistry(present map[string]bool) {
	now := time.Now()

	for path := range present {
		if s.reg.Observe(path, now) {
			s.logger.Info("Обнаружен новый файл",
				slog.String("path", path),
			)
		}
	}

	for path := range s.reg.Tracked() {
		if !present[path] {
			s.reg.Forget(path)
		}
	}
}

// processFile выполняет полный цикл обработки одного пути:
// захват → извлечение → доставка → перемещение.
// Все ошибки содержатся внутри цикла этого файла.
func (s *Service) processFile(ctx context.Context, path string) {
	if !s.reg.Acquire(path) {
		// Путь уже in_flight или в карантине
		return
	}

	// 1. Извлечение метаданных
	meta, err := metadata.Extract(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Файл исчез между обнаружением и чтением — забываем
			s.logger.Warn("Файл исчез до обработки",
				slog.String("path", path),
			)
			s.reg.Drop(path)
			return
		}
		s.fail(path, "Ошибка чтения файла", err)
		return
	}

	// 2. Доставка в Logger Service
	if err := s.client.Deliver(ctx, meta); err != nil {
		s.deliveryFailed(path, err)
		return
	}
	s.reg.MarkDelivered(path)

	// 3. Перемещение в директорию обработанных
	dest, err := s.mover.Move(path)
	if err != nil {
		// Метаданные уже доставлены; файл останется pending и будет
		// доставлен повторно на следующем цикле (at-least-once)
		s.fail(path, "Файл доставлен, но не перемещён", err)
		return
	}

	s.reg.Archive(path)
	s.stats.IncProcessed()
	filesProcessedTotal.Inc()

	s.logger.Info("Файл обработан",
		slog.String("filename", meta.Filename),
		slog.Int64("size", meta.Size),
		slog.String("hash", meta.Hash[:16]+"..."),
		slog.String("moved_to", dest),
	)
}

// deliveryFailed классифицирует ошибку доставки и обновляет состояние пути.
func (s *Service) deliveryFailed(path string, err error) {
	var authErr *loggerclient.AuthError
	var termErr *loggerclient.TerminalError

	switch {
	case errors.As(err, &authErr):
		// Повтор после перевыпуска токена уже выполнен клиентом
		s.quarantine(path, "Аутентификация отклонена", err)
	case errors.As(err, &termErr):
		s.quarantine(path, "Доставка отклонена", err)
	default:
		// Транзиентный сбой — файл будет повторён
		s.fail(path, "Транзиентный сбой доставки", err)
	}
}

// fail фиксирует ошибку цикла; при исчерпании лимита попыток
// путь уходит в карантин с уведомлением.
func (s *Service) fail(path, subject string, err error) {
	s.stats.IncFailed()
	filesFailedTotal.Inc()

	s.logger.Error(subject,
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	if s.reg.Fail(path, err.Error()) {
		filesQuarantinedTotal.Inc()
		s.notifier.Notify(notify.SeverityError,
			"Файл помещён в карантин: исчерпан лимит попыток",
			path+": "+err.Error(),
		)
	}
}

// quarantine немедленно помещает путь в карантин с уведомлением.
func (s *Service) quarantine(path, subject string, err error) {
	s.stats.IncFailed()
	filesFailedTotal.Inc()
	filesQuarantinedTotal.Inc()

	s.logger.Error(subject,
		slog.String("path", path),
		slog.String("error", err.Error()),
	)

	s.reg.Quarantine(path, err.Error())
	s.notifier.Notify(notify.SeverityError,
		"Файл помещён в карантин: "+subject,
		path+": "+err.Error(),
	)
}
