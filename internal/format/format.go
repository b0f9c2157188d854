// Пакет format — утилиты форматирования для отображения и имён файлов.
// Размер файла переводится в человекочитаемый вид (B/KB/MB/GB),
// временные метки — в компактный ISO 8601 basic формат для имён файлов.
package format

import (
	"fmt"
	"time"
)

const (
	kb = 1024
	mb = 1024 * kb
	gb = 1024 * mb
)

// FileSize переводит размер в байтах в человекочитаемую строку.
// Примеры: 512 → "512B", 2048 → "2.00KB", 5242880 → "5.00MB".
// Точное число байт остаётся авторитетным для любых проверок —
// строка предназначена только для отображения.
func FileSize(sizeBytes int64) string {
	switch {
	case sizeBytes < kb:
		return fmt.Sprintf("%dB", sizeBytes)
	case sizeBytes < mb:
		return fmt.Sprintf("%.2fKB", float64(sizeBytes)/kb)
	case sizeBytes < gb:
		return fmt.Sprintf("%.2fMB", float64(sizeBytes)/mb)
	default:
		return fmt.Sprintf("%.2fGB", float64(sizeBytes)/gb)
	}
}

// TimestampForFilename переводит время в формат для имён файлов.
// Пример: 2025-09-30T14:33:22Z → "20250930T143322Z".
// Время всегда приводится к UTC.
func TimestampForFilename(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
