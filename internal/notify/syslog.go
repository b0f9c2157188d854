//go:build !windows

// syslog.go — отправка уведомлений в системный журнал.
// Best-effort: недоступность syslog логируется и проглатывается.
package notify

import (
	"log/slog"
	"log/syslog"
	"sync"
)

// SyslogNotifier — запись уведомлений в syslog.
// Подключение устанавливается лениво при первом уведомлении.
type SyslogNotifier struct {
	tag    string
	logger *slog.Logger

	mu     sync.Mutex
	writer *syslog.Writer
}

// NewSyslogNotifier создаёт syslog-уведомитель с указанным тегом.
func NewSyslogNotifier(tag string, logger *slog.Logger) *SyslogNotifier {
	return &SyslogNotifier{
		tag:    tag,
		logger: logger.With(slog.String("component", "syslog_notifier")),
	}
}

// Notify записывает сообщение в syslog с приоритетом по severity.
func (n *SyslogNotifier) Notify(severity Severity, subject, message string) {
	w, err := n.connect()
	if err != nil {
		n.logger.Warn("Syslog недоступен",
			slog.String("error", err.Error()),
		)
		return
	}

	line := subject + ": " + message

	switch severity {
	case SeverityError:
		err = w.Err(line)
	case SeverityWarning:
		err = w.Warning(line)
	default:
		err = w.Info(line)
	}

	if err != nil {
		n.logger.Warn("Не удалось записать в syslog",
			slog.String("error", err.Error()),
		)
		// Сбрасываем подключение — следующий вызов попробует заново
		n.reset()
	}
}

// connect возвращает открытое подключение к syslog, создавая его при необходимости.
func (n *SyslogNotifier) connect() (*syslog.Writer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.writer != nil {
		return n.writer, nil
	}

	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, n.tag)
	if err != nil {
		return nil, err
	}
	n.writer = w
	return w, nil
}

// reset закрывает и забывает подключение.
func (n *SyslogNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.writer != nil {
		_ = n.writer.Close()
		n.writer = nil
	}
}
