//go:build !gocv

package sink

import (
	"errors"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/stream"
)

// ErrOpenCVUnavailable бинарный файл собран без тега gocv
var ErrOpenCVUnavailable = errors.New("поддержка OpenCV не собрана (тег gocv)")

func openCVSinks(Options, *zap.Logger) (stream.Sinks, error) {
	return stream.Sinks{}, ErrOpenCVUnavailable
}
