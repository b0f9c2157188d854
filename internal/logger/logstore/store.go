// Package logstore хранит записи журнала в виде текстовых файлов
// с ограничением количества хранимых файлов.
package logstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/filepipe/internal/format"
)

var (
	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_log_records_total",
		Help: "Общее количество записанных файлов журнала",
	})
	evictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ls_log_files_evicted_total",
		Help: "Количество файлов журнала, удалённых ротацией",
	})
	filesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ls_log_files",
		Help: "Текущее количество файлов журнала",
	})
)

// ErrStoreFull возвращается при достижении лимита файлов
// с выключенной автоматической очисткой.
var ErrStoreFull = errors.New("достигнут лимит файлов журнала, очистка выключена")

// Record — одна запись журнала о обработанном файле.
type Record struct {
	Filename    string
	SizeBytes   int64
	Hash        string
	CreatedAt   time.Time
	ProcessedAt time.Time
}

// Store пишет записи журнала в директорию атомарно и следит
// за ограничением количества файлов.
type Store struct {
	dir      string
	maxFiles int
	cleanup  bool
	logger   *slog.Logger

	// сериализует запись и ротацию
	mu sync.Mutex
}

// New создаёт хранилище и директорию журнала при необходимости.
// maxFiles <= 0 означает отсутствие лимита.
func New(dir string, maxFiles int, cleanup bool, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории журнала: %w", err)
	}

	s := &Store{
		dir:      dir,
		maxFiles: maxFiles,
		cleanup:  cleanup,
		logger:   logger.With(slog.String("component", "logstore")),
	}
	filesGauge.Set(float64(len(s.listLogFiles())))
	return s, nil
}

// Append записывает одну запись журнала и возвращает имя созданного файла.
// Запись атомарна: временный файл, fsync, rename.
func (s *Store) Append(rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforceLimit(); err != nil {
		return "", err
	}

	name := s.uniqueName(rec)
	if err := s.writeAtomic(filepath.Join(s.dir, name), renderRecord(rec)); err != nil {
		return "", err
	}

	recordsTotal.Inc()
	filesGauge.Set(float64(len(s.listLogFiles())))

	s.logger.Info("Запись журнала сохранена",
		slog.String("log_file", name),
		slog.String("filename", rec.Filename),
	)
	return name, nil
}

// Count возвращает текущее количество файлов журнала.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listLogFiles())
}

// Dir возвращает директорию журнала.
func (s *Store) Dir() string {
	return s.dir
}

// renderRecord формирует содержимое файла журнала.
func renderRecord(rec Record) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Filename: %s\n", rec.Filename)
	fmt.Fprintf(&b, "Size: %s\n", format.FileSize(rec.SizeBytes))
	fmt.Fprintf(&b, "Hash: %s\n", rec.Hash)
	fmt.Fprintf(&b, "Created At: %s\n", rec.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Processed At: %s\n", rec.ProcessedAt.UTC().Format(time.RFC3339))
	return []byte(b.String())
}

// uniqueName строит имя файла журнала: <имя>-<метка времени>.txt.
// При коллизии добавляется короткий uuid-суффикс.
func (s *Store) uniqueName(rec Record) string {
	base := fmt.Sprintf("%s-%s", sanitizeFilename(rec.Filename), format.TimestampForFilename(rec.ProcessedAt))
	name := base + ".txt"
	if _, err := os.Lstat(filepath.Join(s.dir, name)); err == nil {
		name = fmt.Sprintf("%s_%s.txt", base, uuid.NewString()[:8])
	}
	return name
}

// sanitizeFilename убирает из имени символы, небезопасные для
// имени файла журнала.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
		" ", "_",
	)
	name = replacer.Replace(name)
	// расширение исходного файла не несёт смысла в имени записи
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

// writeAtomic пишет содержимое через временный файл с fsync и rename.
func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи журнала: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка синхронизации журнала: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка переименования файла журнала: %w", err)
	}
	return nil
}

// enforceLimit освобождает место под новую запись. При выключенной
// очистке и достигнутом лимите возвращает ErrStoreFull.
func (s *Store) enforceLimit() error {
	if s.maxFiles <= 0 {
		return nil
	}

	files := s.listLogFiles()
	if len(files) < s.maxFiles {
		return nil
	}
	if !s.cleanup {
		return ErrStoreFull
	}

	// удаляем самые старые по времени модификации, освобождая одно место
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	toRemove := len(files) - s.maxFiles + 1
	for _, f := range files[:toRemove] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			// ротация не должна блокировать запись
			s.logger.Warn("Не удалось удалить старый файл журнала",
				slog.String("log_file", f.name),
				slog.String("error", err.Error()),
			)
			continue
		}
		evictedTotal.Inc()
		s.logger.Info("Старый файл журнала удалён ротацией",
			slog.String("log_file", f.name),
		)
	}
	return nil
}

type logFile struct {
	name    string
	modTime time.Time
}

// listLogFiles возвращает файлы журнала, пропуская временные.
func (s *Store) listLogFiles() []logFile {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Ошибка чтения директории журнала",
			slog.String("error", err.Error()),
		)
		return nil
	}

	files := make([]logFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{name: e.Name(), modTime: info.ModTime()})
	}
	return files
}
