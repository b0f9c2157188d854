// dedup.go — подавление повторных уведомлений.
// Одно и то же событие (тема + текст) не рассылается повторно,
// пока не истечёт окно подавления. Без этого постоянная ошибка
// доставки генерировала бы уведомление на каждом цикле опроса.
package notify

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Deduper — обёртка над Notifier с окном подавления дубликатов.
// Ключ дедупликации — пара subject+message. Использует
// expirable LRU: записи истекают сами, память ограничена.
type Deduper struct {
	next Notifier
	seen *expirable.LRU[string, struct{}]
}

// maxDedupEntries — ёмкость LRU ключей подавления.
const maxDedupEntries = 1024

// NewDeduper создаёт уведомитель с окном подавления window.
// window <= 0 отключает подавление.
func NewDeduper(next Notifier, window time.Duration) *Deduper {
	var seen *expirable.LRU[string, struct{}]
	if window > 0 {
		seen = expirable.NewLRU[string, struct{}](maxDedupEntries, nil, window)
	}

	return &Deduper{
		next: next,
		seen: seen,
	}
}

// Notify рассылает уведомление, если такое же не отправлялось внутри окна.
func (d *Deduper) Notify(severity Severity, subject, message string) {
	if d.seen != nil {
		key := string(severity) + "|" + subject + "|" + message
		if _, dup := d.seen.Get(key); dup {
			return
		}
		d.seen.Add(key, struct{}{})
	}

	d.next.Notify(severity, subject, message)
}
