package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/bigkaa/filepipe/internal/api/httperr"
	"github.com/bigkaa/filepipe/internal/logger/logstore"
)

// Stats — счётчики обработки запросов Logger Service.
type Stats struct {
	mu        sync.Mutex
	received  int64
	stored    int64
	rejected  int64
	startedAt time.Time
}

// NewStats создаёт счётчики с точкой отсчёта аптайма.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) IncReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
}

func (s *Stats) IncStored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored++
}

func (s *Stats) IncRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected++
}

// StatsHandler отдаёт GET /api/v1/stats.
type StatsHandler struct {
	stats *Stats
	store *logstore.Store
}

// NewStatsHandler создаёт обработчик статистики.
func NewStatsHandler(stats *Stats, store *logstore.Store) *StatsHandler {
	return &StatsHandler{stats: stats, store: store}
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	h.stats.mu.Lock()
	received := h.stats.received
	stored := h.stats.stored
	rejected := h.stats.rejected
	uptime := time.Since(h.stats.startedAt)
	h.stats.mu.Unlock()

	resp := map[string]any{
		"records_received": received,
		"records_stored":   stored,
		"records_rejected": rejected,
		"log_files":        h.store.Count(),
		"uptime_seconds":   int64(uptime.Seconds()),
	}
	httperr.WriteJSON(w, http.StatusOK, resp)
}
