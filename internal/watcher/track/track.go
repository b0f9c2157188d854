// Пакет track — конечный автомат жизненного цикла отслеживаемых файлов.
//
// Жизненный цикл пути:
//
//	discovered → in_flight → delivered → archived (запись удаляется)
//	                      ↘ failed → (повтор) in_flight | quarantined
//
// Инварианты:
//   - на путь одновременно не больше одного цикла in_flight;
//   - quarantined — терминальное состояние, автоматические повторы исключены;
//   - archived путь не обрабатывается повторно: запись удаляется вместе
//     с перемещением файла, повторное появление того же имени — это
//     новая запись в файловой системе и новая запись в реестре.
//
// Потокобезопасен через sync.Mutex.
package track

import (
	"fmt"
	"sync"
	"time"
)

// State — состояние отслеживаемого пути.
type State string

const (
	// StateDiscovered — путь обнаружен, ожидает обработки
	StateDiscovered State = "discovered"
	// StateInFlight — выполняется цикл извлечение→доставка→архивация
	StateInFlight State = "in_flight"
	// StateDelivered — метаданные доставлены, ожидается перемещение
	StateDelivered State = "delivered"
	// StateFailed — цикл завершился ошибкой, путь будет повторён
	StateFailed State = "failed"
	// StateQuarantined — лимит попыток исчерпан или терминальная ошибка,
	// автоматические повторы исключены
	StateQuarantined State = "quarantined"
)

// validTransitions — матрица допустимых переходов.
// Архивация моделируется удалением записи из реестра, отдельного
// состояния archived в матрице нет.
var validTransitions = map[State]map[State]bool{
	StateDiscovered:  {StateInFlight: true},
	StateInFlight:    {StateDelivered: true, StateFailed: true, StateQuarantined: true},
	StateDelivered:   {StateFailed: true},
	StateFailed:      {StateInFlight: true, StateQuarantined: true},
	StateQuarantined: {},
}

// Entry — отслеживаемый путь и его состояние.
type Entry struct {
	// Path — абсолютный путь исходного файла
	Path string `json:"path"`
	// State — текущее состояние жизненного цикла
	State State `json:"state"`
	// Attempts — число завершившихся ошибкой циклов
	Attempts int `json:"attempts"`
	// DiscoveredAt — время первого обнаружения пути
	DiscoveredAt time.Time `json:"discovered_at"`
	// LastError — причина последней ошибки (пусто при успехе)
	LastError string `json:"last_error,omitempty"`
}

// Registry — потокобезопасный реестр отслеживаемых путей.
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	maxAttempts int
}

// NewRegistry создаёт реестр.
// maxAttempts — число неудачных циклов, после которого путь помещается
// в карантин (0 — без лимита).
func NewRegistry(maxAttempts int) *Registry {
	return &Registry{
		entries:     make(map[string]*Entry),
		maxAttempts: maxAttempts,
	}
}

// transition выполняет переход записи, проверяя матрицу допустимости.
func (e *Entry) transition(to State) error {
	if !validTransitions[e.State][to] {
		return fmt.Errorf("недопустимый переход %s → %s для %s", e.State, to, e.Path)
	}
	e.State = to
	return nil
}

// Observe регистрирует путь, если он ещё не отслеживается.
// Возвращает true, если путь новый.
func (r *Registry) Observe(path string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[path]; ok {
		return false
	}

	r.entries[path] = &Entry{
		Path:         path,
		State:        StateDiscovered,
		DiscoveredAt: now,
	}
	return true
}

// Acquire переводит путь в in_flight, если он готов к обработке
// (discovered или failed). Возвращает false, если путь уже in_flight,
// в карантине или не отслеживается — гарантия единственного цикла на путь.
func (r *Registry) Acquire(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		return false
	}
	if e.State != StateDiscovered && e.State != StateFailed {
		return false
	}

	return e.transition(StateInFlight) == nil
}

// MarkDelivered фиксирует успешную доставку метаданных перед перемещением.
func (r *Registry) MarkDelivered(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[path]; ok {
		_ = e.transition(StateDelivered)
	}
}

// Archive завершает цикл успехом: запись удаляется из реестра.
// Файл к этому моменту перемещён, путь больше не существует.
func (r *Registry) Archive(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, path)
}

// Fail фиксирует ошибку цикла. Инкрементирует счётчик попыток;
// при достижении лимита путь переводится в карантин.
// Возвращает true, если путь помещён в карантин этим вызовом.
func (r *Registry) Fail(path, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		return false
	}

	e.Attempts++
	e.LastError = reason

	if r.maxAttempts > 0 && e.Attempts >= r.maxAttempts {
		_ = e.transition(StateQuarantined)
		return true
	}

	_ = e.transition(StateFailed)
	return false
}

// Quarantine немедленно помещает путь в карантин (терминальная ошибка доставки).
func (r *Registry) Quarantine(path, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		return
	}
	e.LastError = reason
	_ = e.transition(StateQuarantined)
}

// Drop безусловно удаляет запись. В отличие от Forget снимает и in_flight —
// вызывается только владельцем текущего цикла, когда исходный файл исчез.
func (r *Registry) Drop(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, path)
}

// Forget удаляет запись для исчезнувшего пути.
// Запись in_flight не трогается — её цикл завершится сам и решит судьбу записи.
func (r *Registry) Forget(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[path]; ok && e.State != StateInFlight {
		delete(r.entries, path)
	}
}

// Eligible возвращает пути, готовые к обработке: discovered (после паузы
// settle с момента обнаружения) и failed.
func (r *Registry) Eligible(now time.Time, settle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var paths []string
	for _, e := range r.entries {
		switch e.State {
		case StateDiscovered:
			if now.Sub(e.DiscoveredAt) >= settle {
				paths = append(paths, e.Path)
			}
		case StateFailed:
			paths = append(paths, e.Path)
		}
	}
	return paths
}

// Tracked возвращает множество отслеживаемых путей.
func (r *Registry) Tracked() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool, len(r.entries))
	for path := range r.entries {
		set[path] = true
	}
	return set
}

// Snapshot возвращает копию всех записей (для status endpoint).
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// CountByState возвращает количество записей в указанном состоянии.
func (r *Registry) CountByState(state State) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.State == state {
			count++
		}
	}
	return count
}

// Pending возвращает число путей, ожидающих обработки или повтора.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.entries {
		if e.State == StateDiscovered || e.State == StateFailed || e.State == StateInFlight {
			count++
		}
	}
	return count
}
