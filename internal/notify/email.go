// email.go — отправка уведомлений по SMTP.
// Best-effort: любая ошибка отправки логируется и проглатывается.
package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// EmailConfig — параметры SMTP-канала уведомлений.
type EmailConfig struct {
	// Host — адрес SMTP-сервера
	Host string
	// Port — порт SMTP-сервера
	Port int
	// From — адрес отправителя
	From string
	// To — адреса получателей
	To []string
	// Username — имя пользователя SMTP (пустое — без аутентификации)
	Username string
	// Password — пароль SMTP
	Password string
}

// EmailNotifier — отправка уведомлений по электронной почте.
type EmailNotifier struct {
	cfg    EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier создаёт SMTP-уведомитель.
func NewEmailNotifier(cfg EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "email_notifier")),
	}
}

// Notify отправляет письмо. Ошибки отправки логируются, не пробрасываются.
func (n *EmailNotifier) Notify(severity Severity, subject, message string) {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	body := strings.Join([]string{
		"From: " + n.cfg.From,
		"To: " + strings.Join(n.cfg.To, ", "),
		fmt.Sprintf("Subject: [%s] %s", strings.ToUpper(string(severity)), subject),
		"",
		message,
		"",
		"Отправлено: " + time.Now().UTC().Format(time.RFC3339),
	}, "\r\n")

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, []byte(body)); err != nil {
		n.logger.Warn("Не удалось отправить email-уведомление",
			slog.String("smtp_addr", addr),
			slog.String("error", err.Error()),
		)
		return
	}

	n.logger.Debug("Email-уведомление отправлено",
		slog.String("subject", subject),
	)
}
