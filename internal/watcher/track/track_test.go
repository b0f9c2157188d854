package track

import (
	"testing"
	"time"
)

// TestObserve проверяет регистрацию нового пути и отказ для известного.
func TestObserve(t *testing.T) {
	r := NewRegistry(3)
	now := time.Now()

	if !r.Observe("/in/a.txt", now) {
		t.Error("новый путь должен регистрироваться")
	}
	if r.Observe("/in/a.txt", now) {
		t.Error("повторная регистрация того же пути недопустима")
	}
}

// TestAcquire_SingleInFlight проверяет инвариант единственного цикла на путь.
func TestAcquire_SingleInFlight(t *testing.T) {
	r := NewRegistry(3)
	r.Observe("/in/a.txt", time.Now())

	if !r.Acquire("/in/a.txt") {
		t.Fatal("первый захват должен пройти")
	}
	if r.Acquire("/in/a.txt") {
		t.Error("второй захват того же пути должен быть отклонён")
	}
}

// TestAcquire_UnknownPath проверяет отказ для неотслеживаемого пути.
func TestAcquire_UnknownPath(t *testing.T) {
	r := NewRegistry(3)
	if r.Acquire("/in/нет.txt") {
		t.Error("неизвестный путь не должен захватываться")
	}
}

// TestLifecycle_Success проверяет полный успешный цикл.
func TestLifecycle_Success(t *testing.T) {
	r := NewRegistry(3)
	r.Observe("/in/a.txt", time.Now())

	if !r.Acquire("/in/a.txt") {
		t.Fatal("захват не прошёл")
	}
	r.MarkDelivered("/in/a.txt")
	r.Archive("/in/a.txt")

	if r.Tracked()["/in/a.txt"] {
		t.Error("архивированный путь должен быть удалён из реестра")
	}

	// Повторное появление того же имени — новая запись
	if !r.Observe("/in/a.txt", time.Now()) {
		t.Error("путь после архивации должен регистрироваться заново")
	}
}

// TestFail_RetryThenQuarantine проверяет карантин после лимита попыток.
func TestFail_RetryThenQuarantine(t *testing.T) {
	r := NewRegistry(2)
	r.Observe("/in/a.txt", time.Now())

	r.Acquire("/in/a.txt")
	if r.Fail("/in/a.txt", "сбой 1") {
		t.Error("первая ошибка не должна помещать в карантин")
	}

	// Failed путь снова доступен для захвата
	if !r.Acquire("/in/a.txt") {
		t.Fatal("failed путь должен захватываться повторно")
	}
	if !r.Fail("/in/a.txt", "сбой 2") {
		t.Error("вторая ошибка должна поместить путь в карантин")
	}

	if r.Acquire("/in/a.txt") {
		t.Error("карантинный путь не должен захватываться")
	}
	if got := r.CountByState(StateQuarantined); got != 1 {
		t.Errorf("в карантине ожидался 1 путь, получено %d", got)
	}
}

// TestQuarantine_Immediate проверяет немедленный карантин терминальной ошибки.
func TestQuarantine_Immediate(t *testing.T) {
	r := NewRegistry(10)
	r.Observe("/in/a.txt", time.Now())
	r.Acquire("/in/a.txt")

	r.Quarantine("/in/a.txt", "payload отклонён")

	if r.Acquire("/in/a.txt") {
		t.Error("карантинный путь не должен захватываться")
	}
}

// TestForget проверяет удаление исчезнувших путей с защитой in_flight.
func TestForget(t *testing.T) {
	r := NewRegistry(3)
	now := time.Now()

	r.Observe("/in/a.txt", now)
	r.Observe("/in/b.txt", now)
	r.Acquire("/in/b.txt")

	r.Forget("/in/a.txt")
	r.Forget("/in/b.txt") // in_flight — не удаляется

	tracked := r.Tracked()
	if tracked["/in/a.txt"] {
		t.Error("исчезнувший путь должен быть забыт")
	}
	if !tracked["/in/b.txt"] {
		t.Error("in_flight путь не должен забываться")
	}
}

// TestEligible_SettleDelay проверяет паузу перед обработкой нового файла.
func TestEligible_SettleDelay(t *testing.T) {
	r := NewRegistry(3)
	now := time.Now()

	r.Observe("/in/fresh.txt", now)
	r.Observe("/in/old.txt", now.Add(-time.Second))

	eligible := r.Eligible(now, 500*time.Millisecond)
	if len(eligible) != 1 || eligible[0] != "/in/old.txt" {
		t.Errorf("ожидался только отлежавшийся путь, получено %v", eligible)
	}

	// После паузы свежий путь тоже становится доступен
	eligible = r.Eligible(now.Add(time.Second), 500*time.Millisecond)
	if len(eligible) != 2 {
		t.Errorf("ожидалось 2 пути, получено %v", eligible)
	}
}

// TestPending проверяет подсчёт ожидающих путей.
func TestPending(t *testing.T) {
	r := NewRegistry(1)
	now := time.Now()

	r.Observe("/in/a.txt", now)
	r.Observe("/in/b.txt", now)
	r.Observe("/in/c.txt", now)

	r.Acquire("/in/b.txt") // in_flight — тоже pending

	r.Acquire("/in/c.txt")
	r.Fail("/in/c.txt", "сбой") // сразу в карантин (лимит 1)

	if got := r.Pending(); got != 2 {
		t.Errorf("ожидалось 2 ожидающих, получено %d", got)
	}
}
