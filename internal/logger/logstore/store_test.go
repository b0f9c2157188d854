package logstore

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(filename string) Record {
	return Record{
		Filename:    filename,
		SizeBytes:   2048,
		Hash:        "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		CreatedAt:   time.Date(2025, 9, 30, 14, 33, 22, 0, time.UTC),
		ProcessedAt: time.Date(2025, 10, 1, 9, 0, 5, 0, time.UTC),
	}
}

// TestAppend_Content проверяет имя и содержимое файла журнала.
func TestAppend_Content(t *testing.T) {
	store, err := New(t.TempDir(), 100, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	name, err := store.Append(testRecord("отчёт.txt"))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if name != "отчёт-20251001T090005Z.txt" {
		t.Errorf("неожиданное имя файла журнала: %q", name)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	if err != nil {
		t.Fatalf("ошибка чтения файла журнала: %v", err)
	}

	want := "Filename: отчёт.txt\n" +
		"Size: 2.00KB\n" +
		"Hash: 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n" +
		"Created At: 2025-09-30T14:33:22Z\n" +
		"Processed At: 2025-10-01T09:00:05Z\n"
	if string(data) != want {
		t.Errorf("содержимое файла журнала:\n%s\nожидалось:\n%s", data, want)
	}
}

// TestAppend_Collision проверяет уникальный суффикс при совпадении имён.
func TestAppend_Collision(t *testing.T) {
	store, err := New(t.TempDir(), 100, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	rec := testRecord("a.txt")
	first, err := store.Append(rec)
	if err != nil {
		t.Fatalf("ошибка первой записи: %v", err)
	}
	second, err := store.Append(rec)
	if err != nil {
		t.Fatalf("ошибка второй записи: %v", err)
	}

	if first == second {
		t.Error("имена файлов журнала должны различаться")
	}
	if !strings.HasPrefix(second, "a-20251001T090005Z_") {
		t.Errorf("суффикс коллизии: %q", second)
	}
	if store.Count() != 2 {
		t.Errorf("ожидалось 2 файла, получено %d", store.Count())
	}
}

// TestAppend_SanitizesFilename проверяет очистку небезопасных символов.
func TestAppend_SanitizesFilename(t *testing.T) {
	store, err := New(t.TempDir(), 100, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	name, err := store.Append(testRecord("мой отчёт:2025.txt"))
	if err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if strings.ContainsAny(name, ": ") {
		t.Errorf("имя содержит небезопасные символы: %q", name)
	}
}

// TestRetention_EvictsOldest проверяет удаление самого старого файла
// при достижении лимита.
func TestRetention_EvictsOldest(t *testing.T) {
	store, err := New(t.TempDir(), 3, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	var names []string
	for i := 0; i < 4; i++ {
		rec := testRecord("a.txt")
		rec.ProcessedAt = rec.ProcessedAt.Add(time.Duration(i) * time.Second)
		name, err := store.Append(rec)
		if err != nil {
			t.Fatalf("ошибка записи %d: %v", i, err)
		}
		names = append(names, name)
		// mtime должен различаться для детерминированной ротации
		past := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(filepath.Join(store.Dir(), name), past, past); err != nil {
			t.Fatalf("ошибка изменения mtime: %v", err)
		}
	}

	if store.Count() != 3 {
		t.Fatalf("ожидалось 3 файла после ротации, получено %d", store.Count())
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), names[0])); !os.IsNotExist(err) {
		t.Error("самый старый файл должен быть удалён")
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), names[3])); err != nil {
		t.Error("новейший файл должен сохраниться")
	}
}

// TestRetention_CleanupDisabled проверяет отказ в записи при
// достигнутом лимите и выключенной очистке.
func TestRetention_CleanupDisabled(t *testing.T) {
	store, err := New(t.TempDir(), 1, false, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	if _, err := store.Append(testRecord("a.txt")); err != nil {
		t.Fatalf("ошибка первой записи: %v", err)
	}
	if _, err := store.Append(testRecord("b.txt")); !errors.Is(err, ErrStoreFull) {
		t.Errorf("ожидалась ErrStoreFull, получено: %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("лишних файлов быть не должно, получено %d", store.Count())
	}
}

// TestUnlimited проверяет отсутствие лимита при maxFiles <= 0.
func TestUnlimited(t *testing.T) {
	store, err := New(t.TempDir(), 0, true, testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec := testRecord("a.txt")
		rec.ProcessedAt = rec.ProcessedAt.Add(time.Duration(i) * time.Second)
		if _, err := store.Append(rec); err != nil {
			t.Fatalf("ошибка записи %d: %v", i, err)
		}
	}
	if store.Count() != 5 {
		t.Errorf("ожидалось 5 файлов, получено %d", store.Count())
	}
}
