package sink

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/arzzra/camstream/pkg/stream"
)

// Префиксы имен выходных файлов
const (
	CapturePrefix = "capture_"
	RecordPrefix  = "record_"
	timeLayout    = "20060102_150405"
)

// PNGWriter сохраняет снимки кадров в PNG
type PNGWriter struct {
	dir string
	now func() time.Time
}

// NewPNGWriter создает приемник снимков в каталоге dir
func NewPNGWriter(dir string) *PNGWriter {
	return &PNGWriter{dir: dir, now: time.Now}
}

// WriteStill сохраняет кадр как capture_YYYYmmdd_HHMMSS.png
func (w *PNGWriter) WriteStill(f *stream.Frame) (string, error) {
	img, err := ToRGBA(f.Data, f.Width, f.Height, f.Scale)
	if err != nil {
		return "", err
	}

	path, file, err := createOutput(w.dir, CapturePrefix, ".png", w.now())
	if err != nil {
		return "", err
	}

	if err := png.Encode(file, img); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("кодирование PNG: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("закрытие %s: %w", path, err)
	}
	return path, nil
}

// createOutput создает новый файл с меткой времени в имени. Существующие
// файлы не перезаписываются: при совпадении добавляется суффикс _N.
func createOutput(dir, prefix, ext string, at time.Time) (string, *os.File, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("создание каталога %s: %w", dir, err)
		}
	}

	base := prefix + at.Format(timeLayout)
	for i := 0; i < 100; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)

		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, file, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("создание %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("нет свободного имени для %s%s", base, ext)
}
