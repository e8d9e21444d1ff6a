//go:build gocv

package sink

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/arzzra/camstream/pkg/stream"
)

// Window показывает кадры в окне OpenCV. Show вызывается только горутиной
// приема, поэтому окно используется из одного потока.
type Window struct {
	title  string
	window *gocv.Window
}

// NewWindow создает окно отображения. Окно открывается при первом кадре.
func NewWindow(title string) *Window {
	return &Window{title: title}
}

func (w *Window) Show(f *stream.Frame) error {
	mat, err := frameToBGR(f)
	if err != nil {
		return err
	}
	defer mat.Close()

	if w.window == nil {
		w.window = gocv.NewWindow(w.title)
	}
	w.window.IMShow(mat)
	w.window.WaitKey(1)
	return nil
}

func (w *Window) Reset() {
	if w.window != nil {
		w.window.Close()
		w.window = nil
	}
}

// frameToBGR преобразует YUY2 в BGR и увеличивает методом ближайшего соседа
func frameToBGR(f *stream.Frame) (gocv.Mat, error) {
	if err := checkFrame(f.Data, f.Width, f.Height); err != nil {
		return gocv.Mat{}, err
	}
	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC2, f.Data)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("кадр в Mat: %w", err)
	}
	defer src.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, gocv.ColorYUV2BGRYUY2)
	if f.Scale <= 1 {
		return bgr, nil
	}
	defer bgr.Close()

	scaled := gocv.NewMat()
	gocv.Resize(bgr, &scaled, image.Pt(f.Width*f.Scale, f.Height*f.Scale), 0, 0, gocv.InterpolationNearestNeighbor)
	return scaled, nil
}

// VideoFactory открывает записи mp4v через OpenCV
type VideoFactory struct {
	dir    string
	logger *zap.Logger
}

// NewVideoFactory создает фабрику записей mp4 в каталоге dir
func NewVideoFactory(dir string, logger *zap.Logger) *VideoFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoFactory{dir: dir, logger: logger.With(zap.String("component", "video"))}
}

func (v *VideoFactory) OpenRecorder(spec stream.RecordingSpec) (stream.Recorder, error) {
	path, file, err := createOutput(v.dir, RecordPrefix, ".mp4", time.Now())
	if err != nil {
		return nil, err
	}
	// OpenCV открывает файл сам
	file.Close()

	writer, err := gocv.VideoWriterFile(path, "mp4v", spec.FPS, spec.Width, spec.Height, true)
	if err != nil {
		return nil, fmt.Errorf("открытие записи %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("кодек mp4v недоступен для %s", path)
	}

	v.logger.Debug("recording opened", zap.String("path", path), zap.Float64("fps", spec.FPS))
	return &videoRecorder{path: path, writer: writer}, nil
}

type videoRecorder struct {
	path   string
	writer *gocv.VideoWriter
}

func (r *videoRecorder) WriteFrame(f *stream.Frame) error {
	mat, err := frameToBGR(f)
	if err != nil {
		return err
	}
	defer mat.Close()
	return r.writer.Write(mat)
}

func (r *videoRecorder) Close() error {
	return r.writer.Close()
}

func (r *videoRecorder) Path() string {
	return r.path
}

// IMWriter сохраняет снимки через OpenCV
type IMWriter struct {
	dir string
}

// NewIMWriter создает приемник снимков OpenCV в каталоге dir
func NewIMWriter(dir string) *IMWriter {
	return &IMWriter{dir: dir}
}

func (w *IMWriter) WriteStill(f *stream.Frame) (string, error) {
	mat, err := frameToBGR(f)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	path, file, err := createOutput(w.dir, CapturePrefix, ".png", time.Now())
	if err != nil {
		return "", err
	}
	file.Close()

	if !gocv.IMWrite(path, mat) {
		return "", fmt.Errorf("не удалось сохранить %s", path)
	}
	return path, nil
}

func openCVSinks(opts Options, logger *zap.Logger) (stream.Sinks, error) {
	sinks := stream.Sinks{
		Recorder: NewVideoFactory(opts.Dir, logger),
		Still:    NewIMWriter(opts.Dir),
	}
	if opts.Window {
		sinks.Display = NewWindow(opts.WindowTitle)
	}
	return sinks, nil
}
