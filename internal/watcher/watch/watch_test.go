package watch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/filepipe/internal/notify"
	"github.com/bigkaa/filepipe/internal/token"
	"github.com/bigkaa/filepipe/internal/watcher/loggerclient"
	"github.com/bigkaa/filepipe/internal/watcher/mover"
	"github.com/bigkaa/filepipe/internal/watcher/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier запоминает уведомления для проверок.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) Notify(_ notify.Severity, subject, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, subject+": "+message)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// testEnv — собранный watcher против httptest Logger Service.
type testEnv struct {
	svc      *Service
	watchDir string
	procDir  string
	reg      *track.Registry
	notifier *recordingNotifier
	stats    *Stats
}

func newTestEnv(t *testing.T, handler http.Handler, maxAttempts int) *testEnv {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens, err := token.NewService("test-secret", "watcher-service", 5*time.Minute, 30*time.Second, 0, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания сервиса токенов: %v", err)
	}

	client := loggerclient.New(loggerclient.Config{
		URL:            srv.URL + "/log",
		RequestTimeout: 2 * time.Second,
		RetryMax:       0,
		RetryBackoff:   time.Millisecond,
	}, tokens, testLogger())

	watchDir := t.TempDir()
	procDir := filepath.Join(t.TempDir(), "processed")
	mv, err := mover.New(procDir)
	if err != nil {
		t.Fatalf("ошибка создания Mover: %v", err)
	}

	reg := track.NewRegistry(maxAttempts)
	rec := &recordingNotifier{}
	stats := NewStats()

	svc := NewService(Config{
		WatchDir:     watchDir,
		PollInterval: time.Hour, // тики запускаются вручную через RunOnce
		SettleDelay:  0,
		Parallelism:  4,
		IgnoredFiles: []string{".gitkeep", ".DS_Store"},
	}, reg, client, mv, rec, stats, testLogger())

	return &testEnv{
		svc:      svc,
		watchDir: watchDir,
		procDir:  procDir,
		reg:      reg,
		notifier: rec,
		stats:    stats,
	}
}

// okLoggerHandler отвечает 200 с id на каждый POST.
func okLoggerHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "запись.txt"})
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("ошибка подготовки файла: %v", err)
	}
	return path
}

// TestRunOnce_Success проверяет полный цикл: доставка и перемещение.
func TestRunOnce_Success(t *testing.T) {
	env := newTestEnv(t, okLoggerHandler(), 3)
	src := writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.RunOnce(context.Background())

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("исходный файл должен быть перемещён")
	}
	if _, err := os.Stat(filepath.Join(env.procDir, "a.txt")); err != nil {
		t.Errorf("файл не появился в директории обработанных: %v", err)
	}
	if env.reg.Pending() != 0 {
		t.Error("после успеха реестр должен быть пуст")
	}
	if snap := env.stats.Snapshot(); snap.TotalProcessed != 1 || snap.Failed != 0 {
		t.Errorf("счётчики: %+v", snap)
	}
}

// TestRunOnce_TransientKeepsPending проверяет, что после 5xx файл
// остаётся на месте и ожидает повтора.
func TestRunOnce_TransientKeepsPending(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"сбой"}`, http.StatusInternalServerError)
	}), 5)
	src := writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.RunOnce(context.Background())

	if _, err := os.Stat(src); err != nil {
		t.Error("файл не должен перемещаться при сбое доставки")
	}
	if env.reg.CountByState(track.StateFailed) != 1 {
		t.Error("путь должен остаться в состоянии failed")
	}
	if env.notifier.count() != 0 {
		t.Error("до карантина уведомления не рассылаются")
	}
	if snap := env.stats.Snapshot(); snap.Failed != 1 {
		t.Errorf("счётчик ошибок: %+v", snap)
	}
}

// TestRunOnce_QuarantineAfterMaxAttempts проверяет карантин и уведомление
// после исчерпания лимита попыток.
func TestRunOnce_QuarantineAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"сбой"}`, http.StatusInternalServerError)
	}), 2)
	src := writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.RunOnce(context.Background())
	env.svc.RunOnce(context.Background())

	if env.reg.CountByState(track.StateQuarantined) != 1 {
		t.Error("путь должен быть в карантине после 2 попыток")
	}
	if env.notifier.count() != 1 {
		t.Errorf("ожидалось 1 уведомление о карантине, получено %d", env.notifier.count())
	}

	// Карантинный путь не обрабатывается на следующих тиках
	env.svc.RunOnce(context.Background())
	if _, err := os.Stat(src); err != nil {
		t.Error("карантинный файл должен оставаться на месте")
	}
}

// TestRunOnce_TerminalQuarantinesImmediately проверяет немедленный карантин на 400.
func TestRunOnce_TerminalQuarantinesImmediately(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"отсутствует обязательное поле: hash"}`, http.StatusBadRequest)
	}), 10)
	writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.RunOnce(context.Background())

	if env.reg.CountByState(track.StateQuarantined) != 1 {
		t.Error("терминальная ошибка должна сразу помещать путь в карантин")
	}
	if env.notifier.count() != 1 {
		t.Errorf("ожидалось 1 уведомление, получено %d", env.notifier.count())
	}
}

// TestRunOnce_IgnoredFiles проверяет пропуск служебных файлов.
func TestRunOnce_IgnoredFiles(t *testing.T) {
	env := newTestEnv(t, okLoggerHandler(), 3)
	writeFile(t, env.watchDir, ".gitkeep", "")
	writeFile(t, env.watchDir, "данные.DS_Store", "x")

	env.svc.RunOnce(context.Background())

	if len(env.reg.Tracked()) != 0 {
		t.Error("служебные файлы не должны отслеживаться")
	}
	entries, _ := os.ReadDir(env.procDir)
	if len(entries) != 0 {
		t.Error("служебные файлы не должны перемещаться")
	}
}

// TestRunOnce_SettleDelay проверяет, что свежий файл ждёт паузу.
func TestRunOnce_SettleDelay(t *testing.T) {
	env := newTestEnv(t, okLoggerHandler(), 3)
	env.svc.cfg.SettleDelay = time.Hour
	src := writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.RunOnce(context.Background())

	if _, err := os.Stat(src); err != nil {
		t.Error("файл внутри паузы не должен обрабатываться")
	}
	if env.reg.CountByState(track.StateDiscovered) != 1 {
		t.Error("файл должен остаться discovered")
	}
}

// TestRunOnce_ManyFiles проверяет конкурентную обработку нескольких файлов.
func TestRunOnce_ManyFiles(t *testing.T) {
	env := newTestEnv(t, okLoggerHandler(), 3)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		writeFile(t, env.watchDir, name, "содержимое "+name)
	}

	env.svc.RunOnce(context.Background())

	entries, err := os.ReadDir(env.procDir)
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("ожидалось 5 обработанных файлов, получено %d", len(entries))
	}
	if snap := env.stats.Snapshot(); snap.TotalProcessed != 5 {
		t.Errorf("счётчики: %+v", snap)
	}
}

// TestStartStop проверяет запуск и остановку фонового цикла.
func TestStartStop(t *testing.T) {
	env := newTestEnv(t, okLoggerHandler(), 3)
	writeFile(t, env.watchDir, "a.txt", "hello")

	env.svc.Start(context.Background())

	// Первый тик выполняется сразу после старта
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.stats.Snapshot().TotalProcessed == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.svc.Stop()

	if env.stats.Snapshot().TotalProcessed != 1 {
		t.Error("файл не обработан фоновым циклом")
	}
}
