package stream

import (
	"fmt"
	"sync"
	"time"
)

// EventKind тип события для пользовательского интерфейса
type EventKind int

const (
	EventLog           EventKind = iota // Строка журнала
	EventStatus                         // Смена статуса (текст + индикатор)
	EventFPS                            // Текущая оценка частоты кадров
	EventFrameCount                     // Число кадров за последнюю секунду
	EventRecordingTick                  // Время записи
)

// String возвращает строковое представление типа события
func (k EventKind) String() string {
	switch k {
	case EventLog:
		return "log"
	case EventStatus:
		return "status"
	case EventFPS:
		return "fps"
	case EventFrameCount:
		return "frames"
	case EventRecordingTick:
		return "recording"
	default:
		return "unknown"
	}
}

// MarshalText для JSON
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Indicator цвет индикатора статуса
type Indicator string

const (
	IndicatorIdle      Indicator = "idle"
	IndicatorOK        Indicator = "ok"
	IndicatorActive    Indicator = "active"
	IndicatorRecording Indicator = "recording"
	IndicatorError     Indicator = "error"
)

// Event событие для пользовательского интерфейса
type Event struct {
	Kind      EventKind     `json:"kind"`
	Time      time.Time     `json:"time"`
	SessionID string        `json:"session_id,omitempty"`
	Message   string        `json:"message,omitempty"`
	Indicator Indicator     `json:"indicator,omitempty"`
	State     string        `json:"state,omitempty"`
	FPS       float64       `json:"fps,omitempty"`
	Frames    int64         `json:"frames,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
}

// Line возвращает строку журнала с меткой времени
func (e Event) Line() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format("15:04:05"), e.Message)
}

// FormatElapsed форматирует длительность записи как "● mm:ss"
func FormatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("● %02d:%02d", total/60, total%60)
}

// EventQueue очередь событий между горутинами. Производители не блокируются,
// потребитель периодически забирает накопленное через Drain.
type EventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

// NewEventQueue создает пустую очередь
func NewEventQueue() *EventQueue {
	return &EventQueue{notify: make(chan struct{}, 1)}
}

// Push добавляет событие
func (q *EventQueue) Push(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain забирает все накопленные события
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Len возвращает число событий в очереди
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Notify срабатывает после Push, если потребитель еще не забрал сигнал
func (q *EventQueue) Notify() <-chan struct{} {
	return q.notify
}
