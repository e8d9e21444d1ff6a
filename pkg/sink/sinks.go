package sink

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/stream"
)

// Backend реализация приемников
type Backend string

const (
	// BackendNative PNG и Y4M без внешних зависимостей
	BackendNative Backend = "native"
	// BackendOpenCV окно, mp4v и PNG через OpenCV
	BackendOpenCV Backend = "opencv"
)

// Options параметры набора приемников
type Options struct {
	Backend     Backend
	Dir         string // Каталог снимков и записей
	Window      bool   // Открывать окно отображения (только opencv)
	WindowTitle string
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		Backend:     BackendNative,
		Dir:         ".",
		WindowTitle: "HM01B0 Viewer",
	}
}

// New собирает приемники для контроллера. Preview подключается как
// отображение, если backend не дает своего окна.
func New(opts Options, preview *Preview, logger *zap.Logger) (stream.Sinks, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch Backend(strings.ToLower(string(opts.Backend))) {
	case "", BackendNative:
		sinks := stream.Sinks{
			Recorder: NewY4MFactory(opts.Dir, logger),
			Still:    NewPNGWriter(opts.Dir),
		}
		if preview != nil {
			sinks.Display = preview
		}
		return sinks, nil

	case BackendOpenCV:
		sinks, err := openCVSinks(opts, logger)
		if err != nil {
			return stream.Sinks{}, err
		}
		if sinks.Display == nil && preview != nil {
			sinks.Display = preview
		}
		return sinks, nil

	default:
		return stream.Sinks{}, fmt.Errorf("неизвестный backend приемников: %q", opts.Backend)
	}
}
