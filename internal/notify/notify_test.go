package notify

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier — тестовый канал, запоминающий уведомления.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) Notify(_ Severity, subject, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, subject+"|"+message)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// panicNotifier — канал, всегда паникующий.
type panicNotifier struct{}

func (panicNotifier) Notify(Severity, string, string) {
	panic("сбой канала")
}

// TestDeduper_SuppressesDuplicates проверяет подавление повторов внутри окна.
func TestDeduper_SuppressesDuplicates(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDeduper(rec, time.Minute)

	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")
	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")
	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")

	if rec.count() != 1 {
		t.Errorf("ожидалось 1 уведомление, получено %d", rec.count())
	}
}

// TestDeduper_DifferentKeysPass проверяет, что разные события не подавляются.
func TestDeduper_DifferentKeysPass(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDeduper(rec, time.Minute)

	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")
	d.Notify(SeverityError, "Ошибка доставки", "/in/b.txt")

	if rec.count() != 2 {
		t.Errorf("ожидалось 2 уведомления, получено %d", rec.count())
	}
}

// TestDeduper_ZeroWindowDisabled проверяет отключение подавления.
func TestDeduper_ZeroWindowDisabled(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDeduper(rec, 0)

	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")
	d.Notify(SeverityError, "Ошибка доставки", "/in/a.txt")

	if rec.count() != 2 {
		t.Errorf("ожидалось 2 уведомления, получено %d", rec.count())
	}
}

// TestMulti_SurvivesPanic проверяет, что паника одного канала
// не мешает остальным.
func TestMulti_SurvivesPanic(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewMulti(testDiscardLogger(), panicNotifier{}, rec)

	m.Notify(SeverityError, "Ошибка", "детали")

	if rec.count() != 1 {
		t.Errorf("рабочий канал должен получить уведомление, получено %d", rec.count())
	}
}
