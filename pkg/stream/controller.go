package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/transport"
)

// Controller управляет жизненным циклом сессии просмотра:
// подключение, поток, запись и снимки. Методы потокобезопасны.
//
// Горутина приема создается при первом Connect и переиспользуется при
// повторных подключениях. Close завершает ее окончательно.
type Controller struct {
	cfg     *Config
	logger  *zap.Logger
	metrics *Metrics
	events  *EventQueue
	sinks   Sinks

	dispatch *dispatcher
	failures chan receiveFailure

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	machine       *fsm.FSM
	closed        bool
	sessionID     string
	session       *SessionConfig
	resolution    Resolution
	transport     transport.Transport
	newTransport  func(transport.Config) (transport.Transport, error)
	worker        *Receiver
	workerSpawns  int
	epoch         uint64
	recording     bool
	recordStarted time.Time
	recordPath    string
}

// Option настраивает контроллер
type Option func(*Controller)

// WithLogger задает логгер
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics задает метрики
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSinks задает приемники кадров
func WithSinks(s Sinks) Option {
	return func(c *Controller) {
		c.sinks = s
	}
}

// WithEventQueue задает очередь событий интерфейса
func WithEventQueue(q *EventQueue) Option {
	return func(c *Controller) {
		if q != nil {
			c.events = q
		}
	}
}

// NewController создает контроллер в состоянии Disconnected
func NewController(cfg *Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg.Copy(),
		logger:     zap.NewNop(),
		events:     NewEventQueue(),
		failures:   make(chan receiveFailure, 4),
		ctx:        ctx,
		cancel:     cancel,
		resolution: cfg.Resolution,
		newTransport: func(tc transport.Config) (transport.Transport, error) {
			return transport.NewUDPTransport(tc)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.logger = c.logger.With(zap.String("component", "session"))
	c.dispatch = newDispatcher(c.sinks.Display, c.logger.Named("dispatch"))
	c.machine = newSessionFSM(c.handleStateChange)
	c.metrics.ExpectedFrameBytes.Set(float64(c.resolution.FrameSize()))

	c.wg.Add(1)
	go c.supervise()

	return c, nil
}

// Events возвращает очередь событий интерфейса
func (c *Controller) Events() *EventQueue {
	return c.events
}

// Metrics возвращает метрики контроллера
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

// State возвращает текущее состояние сессии
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stringToState(c.machine.Current())
}

// Recording сообщает, идет ли запись
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

// Resolution возвращает выбранное разрешение
func (c *Controller) Resolution() Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolution
}

// ExpectedFrameSize возвращает ожидаемый размер кадра в байтах
func (c *Controller) ExpectedFrameSize() int {
	return c.Resolution().FrameSize()
}

// WorkerSpawns возвращает число запусков горутины приема за время жизни контроллера
func (c *Controller) WorkerSpawns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workerSpawns
}

// Connect проверяет параметры, открывает сокет и переводит сессию в Connected
func (c *Controller) Connect(req ConnectRequest) error {
	sc, err := ParseConnectRequest(req)
	if err != nil {
		// Проверка ввода не трогает состояние сессии, блокировка не нужна
		c.events.Push(Event{Kind: EventLog, Message: "Invalid input: " + err.Error()})
		c.events.Push(Event{Kind: EventStatus, Message: "Invalid input", Indicator: IndicatorError,
			State: StateDisconnected.String()})
		c.logger.Info("connect rejected", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return newError(ErrorCodeInvalidState, "", "контроллер закрыт", nil)
	}
	if state := stringToState(c.machine.Current()); state != StateDisconnected {
		return newError(ErrorCodeInvalidState, c.sessionID, "сессия уже подключена", nil,
			"state", state.String())
	}

	tr, err := c.newTransport(c.cfg.transportConfig(sc))
	if err != nil {
		bindErr := newError(ErrorCodeSocketBindFailure, "", "не удалось открыть локальный порт", err,
			"local_port", sc.LocalPort)
		c.logEvent(fmt.Sprintf("Bind failed on port %d: %v", sc.LocalPort, err))
		c.statusEvent("Bind failed", IndicatorError, StateDisconnected)
		c.logger.Warn("socket bind failed", zap.Int("local_port", sc.LocalPort), zap.Error(err))
		return bindErr
	}

	c.sessionID = uuid.NewString()
	c.session = &sc
	c.transport = tr
	c.ensureWorkerLocked()

	c.fire(eventConnect)

	c.logger.Info("connected",
		zap.String("session_id", c.sessionID),
		zap.String("remote", sc.RemoteAddr()),
		zap.Stringer("local", tr.LocalAddr()),
		zap.Int("scale", sc.Scale))
	c.logEvent(fmt.Sprintf("Connected to %s:%d (local port %d, scale x%d)",
		sc.RemoteIP, sc.RemotePort, sc.LocalPort, sc.Scale))
	return nil
}

// Disconnect останавливает поток, закрывает сокет и возвращает сессию в Disconnected
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectLocked()
}

func (c *Controller) disconnectLocked() error {
	if stringToState(c.machine.Current()) == StateDisconnected {
		return nil
	}

	c.stopStreamLocked()

	// Горутина приема уже приостановлена: сокет не читается в момент закрытия
	if c.transport != nil {
		if err := c.transport.Close(); err != nil {
			c.logger.Warn("socket close failed", zap.Error(err))
		}
		c.transport = nil
	}

	c.fire(eventDisconnect)
	c.logger.Info("disconnected", zap.String("session_id", c.sessionID))
	c.logEvent("Disconnected")

	c.session = nil
	c.sessionID = ""
	return nil
}

// StartStream отправляет сенсору START и переводит сессию в Streaming.
// Допустимо только в состоянии Connected.
func (c *Controller) StartStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := stringToState(c.machine.Current()); state != StateConnected {
		return newError(ErrorCodeInvalidState, c.sessionID, "запуск потока возможен только после подключения", nil,
			"state", state.String())
	}

	c.ensureWorkerLocked()
	c.epoch++
	params := &streamParams{
		transport:    c.transport,
		expectedSize: c.resolution.FrameSize(),
		resolution:   c.resolution,
		scale:        c.session.Scale,
		epoch:        c.epoch,
	}
	if err := c.worker.send(command{kind: cmdResume, params: params}, c.cfg.CommandTimeout); err != nil {
		c.logger.Error("receiver did not resume", zap.Error(err))
		return err
	}

	if err := c.transport.SendCommand(transport.CommandStart); err != nil {
		// Без подтверждения от сенсора: переход выполняется в любом случае
		c.metrics.ControlSendFailures.WithLabelValues(transport.CommandStart).Inc()
		c.logger.Warn("START send failed", zap.Error(err))
		c.logEvent("START send failed: " + err.Error())
	} else {
		c.logEvent("Sent START")
	}

	c.fire(eventStart)
	return nil
}

// StopStream останавливает запись и поток. Вне Streaming ничего не делает.
func (c *Controller) StopStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopStreamLocked()
	return nil
}

func (c *Controller) stopStreamLocked() {
	if stringToState(c.machine.Current()) != StateStreaming {
		return
	}

	if c.recording {
		c.stopRecordingLocked()
	}

	if c.worker != nil {
		if err := c.worker.send(command{kind: cmdPause}, c.cfg.CommandTimeout); err != nil {
			c.logger.Error("receiver did not pause", zap.Error(err))
		}
	}

	if err := c.transport.SendCommand(transport.CommandStop); err != nil {
		c.metrics.ControlSendFailures.WithLabelValues(transport.CommandStop).Inc()
		c.logger.Warn("STOP send failed", zap.Error(err))
		c.logEvent("STOP send failed: " + err.Error())
	} else {
		c.logEvent("Sent STOP")
	}

	c.fire(eventStop)
}

// SetResolution меняет разрешение кадра. Отклоняется во время потока.
func (c *Controller) SetResolution(res Resolution) error {
	if !res.Valid() {
		return newError(ErrorCodeInvalidInput, "", "разрешение не поддерживается", nil,
			"resolution", res.String())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if stringToState(c.machine.Current()) == StateStreaming {
		return newError(ErrorCodeInvalidState, c.sessionID, "разрешение нельзя менять во время потока", nil,
			"resolution", res.String())
	}

	c.resolution = res
	c.metrics.ExpectedFrameBytes.Set(float64(res.FrameSize()))
	c.logger.Info("resolution changed", zap.Stringer("resolution", res), zap.Int("frame_size", res.FrameSize()))
	c.logEvent(fmt.Sprintf("Resolution set to %s (%d bytes per frame)", res, res.FrameSize()))
	return nil
}

// ToggleRecording включает или выключает запись. Допустимо только во время потока.
func (c *Controller) ToggleRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := stringToState(c.machine.Current()); state != StateStreaming {
		return newError(ErrorCodeInvalidState, c.sessionID, "запись возможна только во время потока", nil,
			"state", state.String())
	}

	if c.recording {
		c.stopRecordingLocked()
		return nil
	}

	if c.sinks.Recorder == nil {
		c.logEvent("Recording unavailable: no recorder configured")
		return newError(ErrorCodeSinkOpenFailure, c.sessionID, "приемник записи не настроен", nil)
	}

	spec := RecordingSpec{
		Width:  c.resolution.Width * c.session.Scale,
		Height: c.resolution.Height * c.session.Scale,
		FPS:    c.worker.rate.RecordingFPS(),
		Scale:  c.session.Scale,
		Source: c.resolution,
	}
	rec, err := c.sinks.Recorder.OpenRecorder(spec)
	if err != nil {
		c.logger.Warn("recorder open failed", zap.Error(err))
		c.logEvent("Recording failed: " + err.Error())
		return newError(ErrorCodeSinkOpenFailure, c.sessionID, "не удалось открыть запись", err,
			"width", spec.Width, "height", spec.Height, "fps", spec.FPS)
	}

	c.dispatch.setRecorder(rec)
	c.recording = true
	c.recordStarted = time.Now()
	c.recordPath = rec.Path()
	c.metrics.Recording.Set(1)

	c.logger.Info("recording started",
		zap.String("path", rec.Path()),
		zap.Int("width", spec.Width),
		zap.Int("height", spec.Height),
		zap.Float64("fps", spec.FPS))
	c.logEvent("Recording started: " + rec.Path())
	c.statusEvent("Recording", IndicatorRecording, StateStreaming)
	return nil
}

func (c *Controller) stopRecordingLocked() {
	rec := c.dispatch.takeRecorder()
	c.recording = false
	c.metrics.Recording.Set(0)

	if rec != nil {
		if err := rec.Close(); err != nil {
			c.logger.Warn("recorder close failed", zap.String("path", rec.Path()), zap.Error(err))
			c.logEvent("Recording close failed: " + err.Error())
		}
	}

	c.logger.Info("recording stopped", zap.String("path", c.recordPath),
		zap.Duration("elapsed", time.Since(c.recordStarted)))
	c.logEvent("Recording stopped: " + c.recordPath)
	c.recordPath = ""
	c.statusEvent("Streaming", IndicatorActive, StateStreaming)
}

// CaptureFrame сохраняет последний принятый кадр. Недоступно во время записи.
func (c *Controller) CaptureFrame() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := stringToState(c.machine.Current()); state != StateStreaming || c.recording {
		return "", newError(ErrorCodeInvalidState, c.sessionID, "снимок возможен только во время потока без записи", nil,
			"state", state.String(), "recording", c.recording)
	}
	if c.sinks.Still == nil {
		return "", newError(ErrorCodeSinkOpenFailure, c.sessionID, "приемник снимков не настроен", nil)
	}

	f := c.dispatch.latestFrame()
	if f == nil {
		return "", newError(ErrorCodeNoFrameAvailable, c.sessionID, "еще не принято ни одного кадра", nil)
	}

	path, err := c.sinks.Still.WriteStill(f)
	if err != nil {
		c.logger.Warn("still write failed", zap.Error(err))
		c.logEvent("Capture failed: " + err.Error())
		return "", newError(ErrorCodeSinkOpenFailure, c.sessionID, "не удалось сохранить снимок", err)
	}

	c.logger.Info("frame captured", zap.String("path", path), zap.Uint64("seq", f.Seq))
	c.logEvent("Captured: " + path)
	return path, nil
}

// Close завершает сессию и горутину приема. Контроллер после Close не используется.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	err := c.disconnectLocked()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.logger.Debug("controller closed")
	return err
}

// ensureWorkerLocked запускает горутину приема, если живой еще нет
func (c *Controller) ensureWorkerLocked() {
	if c.worker != nil && c.worker.Alive() {
		return
	}

	w := newReceiver(c.cfg, c.logger.Named("receiver"), c.metrics, c.events, c.dispatch, c.failures)
	c.worker = w
	c.workerSpawns++
	c.metrics.WorkerSpawns.Inc()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		w.Run(c.ctx)
	}()
}

// supervise обрабатывает запросы горутины приема на остановку потока
func (c *Controller) supervise() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.failures:
			c.handleReceiveFailure(f)
		}
	}
}

func (c *Controller) handleReceiveFailure(f receiveFailure) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Запрос от уже остановленного потока
	if f.epoch != c.epoch || stringToState(c.machine.Current()) != StateStreaming {
		return
	}

	c.logger.Warn("stopping stream after receive failure",
		zap.String("session_id", c.sessionID), zap.Error(f.err))
	c.stopStreamLocked()
	c.statusEvent("Stream stopped: receive error", IndicatorError, StateConnected)
}

// fire выполняет переход автомата. Вызывается под c.mu.
func (c *Controller) fire(event string) {
	if err := c.machine.Event(c.ctx, event); err != nil {
		c.logger.Error("state transition failed", zap.String("event", event), zap.Error(err))
	}
}

// handleStateChange вызывается автоматом при входе в новое состояние
func (c *Controller) handleStateChange(e *fsm.Event) {
	c.metrics.StateTransitions.WithLabelValues(e.Src, e.Dst).Inc()

	state := stringToState(e.Dst)
	switch state {
	case StateDisconnected:
		c.statusEvent("Disconnected", IndicatorIdle, state)
	case StateConnected:
		c.statusEvent("Connected", IndicatorOK, state)
	case StateStreaming:
		c.statusEvent("Streaming", IndicatorActive, state)
	}
}

func (c *Controller) logEvent(msg string) {
	c.events.Push(Event{Kind: EventLog, SessionID: c.sessionID, Message: msg})
}

func (c *Controller) statusEvent(text string, indicator Indicator, state State) {
	c.events.Push(Event{
		Kind:      EventStatus,
		SessionID: c.sessionID,
		Message:   text,
		Indicator: indicator,
		State:     state.String(),
	})
}
