package stream

import (
	"context"
	"time"
)

// Периоды событий интерфейса
const (
	FrameCountInterval = time.Second
	RecordTickInterval = 500 * time.Millisecond
)

// Snapshot снимок состояния сессии для интерфейса
type Snapshot struct {
	SessionID         string        `json:"session_id,omitempty"`
	State             State         `json:"state"`
	Recording         bool          `json:"recording"`
	RecordingPath     string        `json:"recording_path,omitempty"`
	RecordingElapsed  time.Duration `json:"recording_elapsed,omitempty"`
	RemoteAddr        string        `json:"remote_addr,omitempty"`
	LocalPort         int           `json:"local_port,omitempty"`
	Scale             int           `json:"scale,omitempty"`
	ScalePercent      int           `json:"scale_percent,omitempty"`
	Resolution        Resolution    `json:"resolution"`
	ExpectedFrameSize int           `json:"expected_frame_size"`
	FPS               float64       `json:"fps"`
	FramesDelivered   uint64        `json:"frames_delivered"`
	WorkerAlive       bool          `json:"worker_alive"`
}

// Snapshot возвращает текущее состояние сессии
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		SessionID:         c.sessionID,
		State:             stringToState(c.machine.Current()),
		Recording:         c.recording,
		RecordingPath:     c.recordPath,
		Resolution:        c.resolution,
		ExpectedFrameSize: c.resolution.FrameSize(),
		FPS:               c.cfg.DefaultFPS,
		FramesDelivered:   c.dispatch.delivered.Load(),
	}
	if c.recording {
		s.RecordingElapsed = time.Since(c.recordStarted)
	}
	if c.session != nil {
		s.RemoteAddr = c.session.RemoteAddr()
		s.LocalPort = c.session.LocalPort
		s.Scale = c.session.Scale
		s.ScalePercent = c.session.ScalePercent
	}
	if c.worker != nil {
		s.FPS = c.worker.FPS()
		s.WorkerAlive = c.worker.Alive()
	}
	return s
}

// Reporter публикует периодические события интерфейса: частоту кадров и
// счетчик кадров раз в секунду, время записи каждые 500ms.
type Reporter struct {
	controller    *Controller
	frameInterval time.Duration
	tickInterval  time.Duration
}

// NewReporter создает публикатор для контроллера
func NewReporter(c *Controller) *Reporter {
	return &Reporter{
		controller:    c,
		frameInterval: FrameCountInterval,
		tickInterval:  RecordTickInterval,
	}
}

// Run публикует события до отмены ctx
func (r *Reporter) Run(ctx context.Context) {
	frames := time.NewTicker(r.frameInterval)
	defer frames.Stop()
	ticks := time.NewTicker(r.tickInterval)
	defer ticks.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-frames.C:
			r.publishFrameCount()
		case <-ticks.C:
			r.publishRecordingTick()
		}
	}
}

func (r *Reporter) publishFrameCount() {
	c := r.controller
	s := c.Snapshot()
	count := c.dispatch.takeSecondCount()
	if s.State != StateStreaming {
		return
	}

	c.events.Push(Event{Kind: EventFrameCount, SessionID: s.SessionID, Frames: count})
	c.events.Push(Event{Kind: EventFPS, SessionID: s.SessionID, FPS: s.FPS})
}

func (r *Reporter) publishRecordingTick() {
	s := r.controller.Snapshot()
	if !s.Recording {
		return
	}

	r.controller.events.Push(Event{
		Kind:      EventRecordingTick,
		SessionID: s.SessionID,
		Message:   FormatElapsed(s.RecordingElapsed),
		Elapsed:   s.RecordingElapsed,
	})
}
