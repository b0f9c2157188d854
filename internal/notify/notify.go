// Пакет notify — capability рассылки уведомлений об ошибках конвейера.
//
// Контракт: Notify никогда не возвращает ошибку и не пробрасывает панику —
// сбой уведомления логируется и проглатывается, он не должен влиять
// на состояние доставки файлов. Все реализации fire-and-forget.
package notify

import (
	"context"
	"log/slog"
)

// Severity — важность уведомления.
type Severity string

const (
	// SeverityError — ошибка, требующая внимания оператора.
	SeverityError Severity = "error"
	// SeverityWarning — деградация, не блокирующая работу.
	SeverityWarning Severity = "warning"
	// SeverityInfo — информационное событие.
	SeverityInfo Severity = "info"
)

// Notifier — интерфейс рассылки уведомлений.
// subject — краткая тема, message — подробности (путь файла, причина).
type Notifier interface {
	Notify(severity Severity, subject, message string)
}

// LogNotifier — запись уведомлений в slog. Всегда доступен,
// используется как базовый канал и как fallback.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт slog-уведомитель.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

// Notify записывает уведомление в лог с уровнем по severity.
func (n *LogNotifier) Notify(severity Severity, subject, message string) {
	level := slog.LevelInfo
	switch severity {
	case SeverityError:
		level = slog.LevelError
	case SeverityWarning:
		level = slog.LevelWarn
	}

	n.logger.LogAttrs(context.Background(), level, "Уведомление",
		slog.String("subject", subject),
		slog.String("message", message),
	)
}

// Multi — fan-out уведомлений в несколько каналов.
// Паника любого канала перехватывается и логируется.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti создаёт составной уведомитель.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{
		notifiers: notifiers,
		logger:    logger.With(slog.String("component", "notifier")),
	}
}

// Notify рассылает уведомление во все каналы.
func (m *Multi) Notify(severity Severity, subject, message string) {
	for _, n := range m.notifiers {
		m.send(n, severity, subject, message)
	}
}

// send вызывает один канал с перехватом паники.
func (m *Multi) send(n Notifier, severity Severity, subject, message string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Паника в канале уведомлений",
				slog.Any("panic", r),
			)
		}
	}()
	n.Notify(severity, subject, message)
}
