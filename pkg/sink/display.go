package sink

import (
	"image/png"
	"io"
	"sync"
	"sync/atomic"

	"github.com/arzzra/camstream/pkg/stream"
)

// NopDisplay отбрасывает кадры
type NopDisplay struct{}

func (NopDisplay) Show(*stream.Frame) error { return nil }

func (NopDisplay) Reset() {}

// Preview хранит последний показанный кадр для отдачи по HTTP.
// После Reset кадра нет до следующего Show.
type Preview struct {
	mu    sync.RWMutex
	frame *stream.Frame
	shown atomic.Uint64
}

// NewPreview создает пустой предпросмотр
func NewPreview() *Preview {
	return &Preview{}
}

func (p *Preview) Show(f *stream.Frame) error {
	p.mu.Lock()
	p.frame = f
	p.mu.Unlock()
	p.shown.Add(1)
	return nil
}

func (p *Preview) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = nil
}

// Frame возвращает последний кадр или nil
func (p *Preview) Frame() *stream.Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame
}

// Shown возвращает число показанных кадров
func (p *Preview) Shown() uint64 {
	return p.shown.Load()
}

// EncodePNG пишет последний кадр в PNG с увеличением сессии.
// Возвращает false, если кадра нет.
func (p *Preview) EncodePNG(w io.Writer) (bool, error) {
	f := p.Frame()
	if f == nil {
		return false, nil
	}
	img, err := ToRGBA(f.Data, f.Width, f.Height, f.Scale)
	if err != nil {
		return true, err
	}
	return true, png.Encode(w, img)
}
