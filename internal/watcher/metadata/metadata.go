// Пакет metadata — извлечение метаданных файла перед отправкой.
//
// Хэш считается потоково блоками через инкрементальный SHA-256 —
// файл никогда не загружается в память целиком. Гонка между
// обнаружением файла и чтением (файл исчез или меняется) не фатальна:
// возвращается ReadError, вызывающий цикл пропускает файл до
// следующего опроса.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ReadError — исходный файл исчез или нечитаем во время обработки.
// Ожидаемый класс ошибок: файл будет повторён на следующем цикле опроса.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("чтение файла %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsReadError сообщает, является ли ошибка ошибкой чтения исходного файла.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// Metadata — метаданные файла для отправки в Logger Service.
type Metadata struct {
	// Filename — базовое имя файла (без директории)
	Filename string
	// Path — абсолютный путь исходного файла
	Path string
	// Size — точный размер в байтах (авторитетное значение)
	Size int64
	// CreatedAt — время модификации исходного файла (UTC)
	CreatedAt time.Time
	// Hash — SHA-256 содержимого, hex
	Hash string
}

// Extract извлекает метаданные файла по пути.
// Если содержимое меняется во время чтения (размер или mtime сдвинулись
// между открытием и концом хэширования), возвращается ReadError —
// устаревшие метаданные никогда не отправляются.
func Extract(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	before, err := f.Stat()
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	return extractFrom(f, path, before)
}

// extractFrom хэширует открытый файл и сверяет его состояние
// со снимком before, сделанным до начала чтения.
func extractFrom(f *os.File, path string, before os.FileInfo) (*Metadata, error) {
	// Потоковое хэширование: io.Copy читает файл блоками,
	// в памяти держится только буфер копирования
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	// Повторный stat: если файл изменился во время чтения,
	// метаданные не согласованы и отбрасываются
	after, err := os.Stat(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		return nil, &ReadError{Path: path, Err: fmt.Errorf("файл изменился во время чтения")}
	}

	return &Metadata{
		Filename:  filepath.Base(path),
		Path:      path,
		Size:      after.Size(),
		CreatedAt: after.ModTime().UTC(),
		Hash:      hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
