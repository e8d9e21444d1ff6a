package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/stream"
)

// DefaultPollInterval период опроса очереди событий контроллера
const DefaultPollInterval = 80 * time.Millisecond

// DefaultHistorySize число строк журнала, которые помнит Pump
const DefaultHistorySize = 200

// Pump забирает события контроллера, пишет строки журнала в логгер,
// хранит последние строки и рассылает события подписчикам.
type Pump struct {
	queue    *stream.EventQueue
	logger   *zap.Logger
	interval time.Duration

	mu          sync.Mutex
	history     []string
	historySize int
	subscribers map[chan stream.Event]struct{}
	last        map[stream.EventKind]stream.Event
	stopped     bool
}

// NewPump создает рассыльщик событий для очереди
func NewPump(queue *stream.EventQueue, logger *zap.Logger) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pump{
		queue:       queue,
		logger:      logger.With(zap.String("component", "events")),
		interval:    DefaultPollInterval,
		historySize: DefaultHistorySize,
		subscribers: make(map[chan stream.Event]struct{}),
		last:        make(map[stream.EventKind]stream.Event),
	}
}

// Run забирает события по сигналу очереди и по таймеру до отмены ctx
func (p *Pump) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Flush()
			p.closeSubscribers()
			return
		case <-p.queue.Notify():
			p.Flush()
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush обрабатывает все накопленные события
func (p *Pump) Flush() {
	for _, e := range p.queue.Drain() {
		p.handle(e)
	}
}

func (p *Pump) handle(e stream.Event) {
	switch e.Kind {
	case stream.EventLog:
		p.logger.Info(e.Message, zap.String("session_id", e.SessionID))
	case stream.EventStatus:
		p.logger.Debug("status", zap.String("text", e.Message), zap.String("indicator", string(e.Indicator)),
			zap.String("state", e.State))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Kind == stream.EventLog {
		p.history = append(p.history, e.Line())
		if over := len(p.history) - p.historySize; over > 0 {
			p.history = append(p.history[:0], p.history[over:]...)
		}
	} else {
		p.last[e.Kind] = e
	}

	for ch := range p.subscribers {
		select {
		case ch <- e:
		default:
			// Медленный подписчик пропускает событие
		}
	}
}

// History возвращает последние строки журнала
func (p *Pump) History() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.history...)
}

// Last возвращает последнее событие данного типа
func (p *Pump) Last(kind stream.EventKind) (stream.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.last[kind]
	return e, ok
}

// Subscribe регистрирует подписчика. Канал закрывается при отписке или
// завершении Run. После завершения Run возвращается уже закрытый канал.
func (p *Pump) Subscribe(buffer int) (<-chan stream.Event, func()) {
	ch := make(chan stream.Event, buffer)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subscribers[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.subscribers[ch]; ok {
				delete(p.subscribers, ch)
				close(ch)
			}
		})
	}
}

func (p *Pump) closeSubscribers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
}
