// stats.go — счётчики обработки файлов для status endpoint.
// Дневной счётчик сбрасывается при смене даты (UTC).
package watch

import (
	"sync"
	"time"
)

// Stats — потокобезопасные счётчики watcher.
type Stats struct {
	mu             sync.Mutex
	totalProcessed int
	todayProcessed int
	failed         int
	lastReset      time.Time // дата последнего сброса дневного счётчика
	startedAt      time.Time
}

// NewStats создаёт счётчики.
func NewStats() *Stats {
	now := time.Now().UTC()
	return &Stats{
		lastReset: now.Truncate(24 * time.Hour),
		startedAt: now,
	}
}

// IncProcessed инкрементирует счётчики успешной обработки.
func (s *Stats) IncProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfNewDay()
	s.totalProcessed++
	s.todayProcessed++
}

// IncFailed инкрементирует счётчик ошибок.
func (s *Stats) IncFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetIfNewDay()
	s.failed++
}

// resetIfNewDay сбрасывает дневной счётчик при смене даты UTC.
// Вызывается под мьютексом.
func (s *Stats) resetIfNewDay() {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(s.lastReset) {
		s.todayProcessed = 0
		s.lastReset = today
	}
}

// Snapshot — срез счётчиков для status endpoint.
type Snapshot struct {
	TotalProcessed int     `json:"total_processed"`
	TodayProcessed int     `json:"today_processed"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"success_rate"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
}

// Snapshot возвращает текущие значения счётчиков.
// SuccessRate — доля успешных обработок в процентах (100 при отсутствии работы).
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := 100.0
	total := s.totalProcessed + s.failed
	if total > 0 {
		rate = float64(s.totalProcessed) / float64(total) * 100
	}

	return Snapshot{
		TotalProcessed: s.totalProcessed,
		TodayProcessed: s.todayProcessed,
		Failed:         s.failed,
		SuccessRate:    rate,
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
	}
}
