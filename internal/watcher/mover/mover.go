// Пакет mover — атомарное перемещение обработанных файлов.
//
// Файл перемещается (не копируется) через os.Rename: в пределах одной
// файловой системы операция атомарна, сбой посреди перемещения не теряет
// и не дублирует файл. Директории watch и processed обязаны находиться
// на одной файловой системе.
package mover

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mover — перемещение файлов в директорию обработанных.
type Mover struct {
	processedDir string
}

// New создаёт Mover. Создаёт директорию обработанных, если её нет.
func New(processedDir string) (*Mover, error) {
	if err := os.MkdirAll(processedDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию обработанных %s: %w", processedDir, err)
	}
	return &Mover{processedDir: processedDir}, nil
}

// Move атомарно перемещает файл в директорию обработанных.
// При совпадении имени с уже существующим файлом к имени добавляется
// суффикс из временной метки и короткого UUID.
// Возвращает итоговый путь файла.
func (m *Mover) Move(srcPath string) (string, error) {
	base := filepath.Base(srcPath)
	dest := filepath.Join(m.processedDir, base)

	// Имя занято — добавляем уникальный суффикс
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(m.processedDir, uniqueName(base))
	}

	if err := os.Rename(srcPath, dest); err != nil {
		return "", fmt.Errorf("перемещение %s → %s: %w", srcPath, dest, err)
	}

	return dest, nil
}

// ProcessedDir возвращает путь к директории обработанных.
func (m *Mover) ProcessedDir() string {
	return m.processedDir
}

// uniqueName строит уникальное имя при коллизии.
// Формат: {name}_{timestamp}_{uuid}{ext}
// Пример: report_20260830T141503Z_a1b2c3d4.pdf
func uniqueName(base string) string {
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	ts := time.Now().UTC().Format("20060102T150405Z")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
}
