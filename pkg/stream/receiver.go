package stream

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/fragment"
	"github.com/arzzra/camstream/pkg/transport"
)

type commandKind int

const (
	cmdResume commandKind = iota // начать чтение с переданными параметрами
	cmdPause                     // прекратить чтение, горутина продолжает жить
)

// streamParams параметры активного потока. Передаются горутине приема целиком
// при возобновлении, поэтому смена разрешения вне потока видна сразу.
type streamParams struct {
	transport    transport.Transport
	expectedSize int
	resolution   Resolution
	scale        int
	epoch        uint64
}

type command struct {
	kind   commandKind
	params *streamParams
	done   chan struct{}
}

// receiveFailure запрос контроллеру перевести сессию из Streaming в Connected
type receiveFailure struct {
	epoch uint64
	err   error
}

// Receiver горутина приема. Единственный владелец сборщика кадров, оценщика
// частоты и операций чтения сокета. Управляется командами через канал;
// завершается только при отмене контекста процесса.
type Receiver struct {
	logger    *zap.Logger
	metrics   *Metrics
	events    *EventQueue
	dispatch  *dispatcher
	assembler *fragment.Assembler
	rate      *RateEstimator

	commands chan command
	failures chan<- receiveFailure
	done     chan struct{}
	seq      uint64
}

func newReceiver(cfg *Config, logger *zap.Logger, metrics *Metrics, events *EventQueue,
	dispatch *dispatcher, failures chan<- receiveFailure) *Receiver {
	opts := fragment.DefaultOptions()
	opts.Mode = cfg.AssemblyMode
	opts.StaleAfter = cfg.StaleAfter

	return &Receiver{
		logger:    logger,
		metrics:   metrics,
		events:    events,
		dispatch:  dispatch,
		assembler: fragment.NewAssembler(opts),
		rate:      NewRateEstimator(cfg.RateWindow, cfg.DefaultFPS),
		commands:  make(chan command),
		failures:  failures,
		done:      make(chan struct{}),
	}
}

// Run выполняет цикл приема до отмены ctx
func (r *Receiver) Run(ctx context.Context) {
	defer close(r.done)
	r.logger.Debug("receiver.Run started")

	var active *streamParams
	for {
		if active == nil {
			select {
			case <-ctx.Done():
				r.shutdown()
				return
			case cmd := <-r.commands:
				active = r.apply(cmd, active)
			}
			continue
		}

		// Команды проверяются между чтениями: задержка не больше одного таймаута чтения
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case cmd := <-r.commands:
			active = r.apply(cmd, active)
			continue
		default:
		}

		data, _, err := active.transport.Receive(ctx)
		if err != nil {
			if transport.IsTimeout(err) || ctx.Err() != nil {
				continue
			}
			r.fail(active, err)
			active = nil
			continue
		}

		r.handleDatagram(active, data)
	}
}

// Alive сообщает, что горутина еще работает
func (r *Receiver) Alive() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Done закрывается при завершении горутины
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// FPS возвращает текущую сглаженную частоту кадров
func (r *Receiver) FPS() float64 {
	return r.rate.FPS()
}

// send передает команду и ждет подтверждения
func (r *Receiver) send(cmd command, timeout time.Duration) error {
	cmd.done = make(chan struct{})
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrWorkerUnavailable
	case <-timer.C:
		return newError(ErrorCodeWorkerUnavailable, "", "горутина приема не приняла команду", nil,
			"timeout", timeout)
	}

	select {
	case <-cmd.done:
		return nil
	case <-r.done:
		return ErrWorkerUnavailable
	case <-timer.C:
		return newError(ErrorCodeWorkerUnavailable, "", "горутина приема не подтвердила команду", nil,
			"timeout", timeout)
	}
}

func (r *Receiver) apply(cmd command, active *streamParams) *streamParams {
	defer close(cmd.done)

	switch cmd.kind {
	case cmdResume:
		// Остатки кадров прошлого потока не должны смешиваться с новым
		r.assembler.Reset()
		r.rate.Restart()
		r.logger.Debug("receiver resumed",
			zap.Int("expected_size", cmd.params.expectedSize),
			zap.Uint64("epoch", cmd.params.epoch))
		return cmd.params
	case cmdPause:
		if active != nil {
			r.logger.Debug("receiver paused", zap.Uint64("epoch", active.epoch))
		}
		r.dispatch.idle()
		return nil
	default:
		return active
	}
}

func (r *Receiver) handleDatagram(active *streamParams, data []byte) {
	res := r.assembler.Add(data, active.expectedSize)
	if res.Outcome == fragment.OutcomeIgnored {
		r.metrics.DatagramsIgnored.Inc()
		return
	}

	r.metrics.DatagramsReceived.Inc()
	r.metrics.BytesReceived.Add(float64(len(data)))
	if res.Superseded {
		r.metrics.FramesDropped.WithLabelValues(DropReasonSuperseded).Inc()
	}

	switch res.Outcome {
	case fragment.OutcomeMismatch:
		// Без журнала: снижает только фактическую частоту кадров
		r.metrics.FramesDropped.WithLabelValues(DropReasonSizeMismatch).Inc()

	case fragment.OutcomeComplete:
		now := time.Now()
		if fps, ok := r.rate.Update(now); ok {
			r.metrics.FPS.Set(fps)
		}
		r.metrics.FramesCompleted.Inc()

		r.seq++
		r.dispatch.deliver(&Frame{
			Seq:       r.seq,
			FrameID:   res.FrameID,
			Width:     active.resolution.Width,
			Height:    active.resolution.Height,
			Scale:     active.scale,
			Data:      res.Data,
			Timestamp: now,
		})
	}
}

// fail сообщает контроллеру об ошибке чтения. Горутина сама прекращает чтение
// до следующей команды возобновления.
func (r *Receiver) fail(active *streamParams, err error) {
	r.metrics.ReceiveErrors.Inc()
	r.logger.Warn("receive failed", zap.Uint64("epoch", active.epoch), zap.Error(err))
	r.events.Push(Event{Kind: EventLog, Message: "Receive error: " + err.Error()})
	r.dispatch.idle()

	select {
	case r.failures <- receiveFailure{epoch: active.epoch, err: err}:
	default:
	}
}

func (r *Receiver) shutdown() {
	r.dispatch.idle()
	r.logger.Debug("receiver.Run stopped")
}
