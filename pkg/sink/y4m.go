package sink

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/stream"
)

// Y4MFactory открывает записи в формате YUV4MPEG2 (4:2:2, планарный)
type Y4MFactory struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewY4MFactory создает фабрику записей в каталоге dir
func NewY4MFactory(dir string, logger *zap.Logger) *Y4MFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Y4MFactory{
		dir:    dir,
		logger: logger.With(zap.String("component", "y4m")),
		now:    time.Now,
	}
}

// OpenRecorder создает файл record_YYYYmmdd_HHMMSS.y4m и пишет заголовок потока
func (f *Y4MFactory) OpenRecorder(spec stream.RecordingSpec) (stream.Recorder, error) {
	if spec.Width <= 0 || spec.Height <= 0 || spec.Width%2 != 0 {
		return nil, fmt.Errorf("некорректный размер записи %dx%d", spec.Width, spec.Height)
	}
	scale := spec.Scale
	if scale < 1 {
		scale = 1
	}

	path, file, err := createOutput(f.dir, RecordPrefix, ".y4m", f.now())
	if err != nil {
		return nil, err
	}

	num, den := frameRate(spec.FPS)
	w := bufio.NewWriterSize(file, spec.Width*spec.Height*2+16)
	if _, err := fmt.Fprintf(w, "YUV4MPEG2 W%d H%d F%d:%d Ip A1:1 C422\n", spec.Width, spec.Height, num, den); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("запись заголовка Y4M: %w", err)
	}

	f.logger.Debug("recording opened", zap.String("path", path), zap.Int("width", spec.Width),
		zap.Int("height", spec.Height), zap.String("rate", fmt.Sprintf("%d:%d", num, den)))

	return &y4mRecorder{
		path:   path,
		file:   file,
		w:      w,
		width:  spec.Width,
		height: spec.Height,
		scale:  scale,
		planes: make([]byte, spec.Width*spec.Height*2),
	}, nil
}

// frameRate переводит частоту в несократимую дробь с точностью до 1/1000
func frameRate(fps float64) (int, int) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = stream.DefaultFPS
	}
	num, den := int(math.Round(fps*1000)), 1000
	a, b := num, den
	for b != 0 {
		a, b = b, a%b
	}
	return num / a, den / a
}

type y4mRecorder struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	w      *bufio.Writer
	width  int
	height int
	scale  int
	planes []byte
	closed bool
}

// WriteFrame пишет кадр, увеличенный до размера записи.
// Кадры другого разрешения отклоняются.
func (r *y4mRecorder) WriteFrame(f *stream.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("запись %s закрыта", r.path)
	}
	if f.Width*r.scale != r.width || f.Height*r.scale != r.height {
		return fmt.Errorf("кадр %dx%d не соответствует записи %dx%d", f.Width, f.Height, r.width, r.height)
	}
	if err := checkFrame(f.Data, f.Width, f.Height); err != nil {
		return err
	}

	r.fillPlanes(f)
	if _, err := r.w.WriteString("FRAME\n"); err != nil {
		return err
	}
	if _, err := r.w.Write(r.planes); err != nil {
		return err
	}
	return nil
}

// fillPlanes раскладывает упакованный YUY2 на плоскости Y, U, V
func (r *y4mRecorder) fillPlanes(f *stream.Frame) {
	yPlane := r.planes[:r.width*r.height]
	uPlane := r.planes[r.width*r.height : r.width*r.height*3/2]
	vPlane := r.planes[r.width*r.height*3/2:]
	chromaW := r.width / 2

	for oy := 0; oy < r.height; oy++ {
		src := f.Data[(oy/r.scale)*f.Width*2:]
		for ox := 0; ox < r.width; ox++ {
			yPlane[oy*r.width+ox] = src[(ox/r.scale)*2]
		}
		for cx := 0; cx < chromaW; cx++ {
			pair := ((cx * 2 / r.scale) / 2) * 4
			uPlane[oy*chromaW+cx] = src[pair+1]
			vPlane[oy*chromaW+cx] = src[pair+3]
		}
	}
}

func (r *y4mRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	flushErr := r.w.Flush()
	closeErr := r.file.Close()
	if flushErr != nil {
		return fmt.Errorf("сброс записи %s: %w", r.path, flushErr)
	}
	return closeErr
}

func (r *y4mRecorder) Path() string {
	return r.path
}
