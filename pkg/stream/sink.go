package stream

import "time"

// Frame собранный кадр YUY2
type Frame struct {
	Seq       uint64    // Порядковый номер доставленного кадра в процессе
	FrameID   uint8     // frame_id из заголовков фрагментов
	Width     int       // Ширина кадра в пикселях
	Height    int       // Высота кадра в пикселях
	Scale     int       // Множитель отображения сессии
	Data      []byte    // Width*Height*2 байт YUY2
	Timestamp time.Time // Момент сборки
}

// Resolution возвращает разрешение кадра
func (f *Frame) Resolution() Resolution {
	return Resolution{Width: f.Width, Height: f.Height}
}

// Display показывает кадры. Вызывается только горутиной приема.
type Display interface {
	Show(f *Frame) error
	// Reset освобождает окно, когда поток приостановлен или процесс завершается
	Reset()
}

// RecordingSpec параметры открываемой записи
type RecordingSpec struct {
	Width  int     // Ширина выходного видео (ширина кадра * масштаб)
	Height int     // Высота выходного видео
	FPS    float64 // Частота, ограниченная [1, 60]
	Scale  int
	Source Resolution
}

// Recorder принимает кадры записи
type Recorder interface {
	WriteFrame(f *Frame) error
	Close() error
	Path() string
}

// RecorderFactory открывает запись
type RecorderFactory interface {
	OpenRecorder(spec RecordingSpec) (Recorder, error)
}

// StillWriter сохраняет одиночный кадр и возвращает путь к файлу
type StillWriter interface {
	WriteStill(f *Frame) (string, error)
}

// Sinks внешние потребители кадров. Любое поле может быть nil.
type Sinks struct {
	Display  Display
	Recorder RecorderFactory
	Still    StillWriter
}
