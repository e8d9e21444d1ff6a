package stream

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// dispatcher раздает собранные кадры приемникам. deliver и idle вызываются
// горутиной приема, управление записью идет из контроллера.
type dispatcher struct {
	display Display
	logger  *zap.Logger

	mu       sync.Mutex
	recorder Recorder
	writeErr bool

	latest    atomic.Pointer[Frame]
	delivered atomic.Uint64
	perSecond atomic.Int64
	shown     bool
}

func newDispatcher(display Display, logger *zap.Logger) *dispatcher {
	return &dispatcher{display: display, logger: logger}
}

func (d *dispatcher) deliver(f *Frame) {
	d.latest.Store(f)
	d.delivered.Add(1)
	d.perSecond.Add(1)

	if d.display != nil {
		if err := d.display.Show(f); err != nil {
			d.logger.Debug("display failed", zap.Uint64("seq", f.Seq), zap.Error(err))
		} else {
			d.shown = true
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recorder == nil {
		return
	}
	if err := d.recorder.WriteFrame(f); err != nil {
		// Одно сообщение на запись, иначе журнал заполнится ошибками каждого кадра
		if !d.writeErr {
			d.logger.Warn("recorder write failed", zap.String("path", d.recorder.Path()), zap.Error(err))
			d.writeErr = true
		}
	}
}

// idle освобождает окно отображения
func (d *dispatcher) idle() {
	if d.display != nil && d.shown {
		d.display.Reset()
		d.shown = false
	}
}

func (d *dispatcher) setRecorder(r Recorder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder = r
	d.writeErr = false
}

func (d *dispatcher) takeRecorder() Recorder {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.recorder
	d.recorder = nil
	return r
}

func (d *dispatcher) latestFrame() *Frame {
	return d.latest.Load()
}

// takeSecondCount возвращает число кадров с прошлого вызова
func (d *dispatcher) takeSecondCount() int64 {
	return d.perSecond.Swap(0)
}
