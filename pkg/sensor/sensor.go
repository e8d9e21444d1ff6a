// Package sensor эмулирует камеру HM01B0: принимает управляющие датаграммы
// START/STOP и отправляет кадры YUY2, разбитые на фрагменты, отправителю START.
//
// Номер кадра увеличивается с каждым кадром и обнуляется при каждом START,
// как в прошивке сенсора. Эмулятор используется в тестах горутины приема и
// в утилите camsim для отладки просмотрщика без железа.
package sensor

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/fragment"
	"github.com/arzzra/camstream/pkg/transport"
)

// Config параметры эмулятора
type Config struct {
	ListenAddr  string  // Адрес приема команд, например ":5000"
	Width       int     // Ширина кадра
	Height      int     // Высота кадра
	FPS         float64 // Частота отправки кадров
	PayloadSize int     // Полезная нагрузка фрагмента (0 = 1468)
	DropRate    float64 // Доля теряемых фрагментов [0, 1)
	Seed        int64   // Зерно генератора потерь
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":5000",
		Width:       320,
		Height:      240,
		FPS:         25,
		PayloadSize: fragment.MaxPayloadSize,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("адрес приема команд обязателен")
	}
	if c.Width <= 0 || c.Height <= 0 || c.Width%2 != 0 {
		return fmt.Errorf("некорректное разрешение %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 || c.FPS > 120 {
		return fmt.Errorf("частота кадров должна быть в диапазоне (0, 120]")
	}
	if c.PayloadSize < 0 || c.PayloadSize > fragment.MaxPayloadSize {
		return fmt.Errorf("размер payload должен быть в диапазоне 0-%d", fragment.MaxPayloadSize)
	}
	if fragment.FragmentCount(c.Width*c.Height*2, c.PayloadSize) > fragment.MaxFragments {
		return fmt.Errorf("кадр %dx%d не помещается в %d фрагментов", c.Width, c.Height, fragment.MaxFragments)
	}
	if c.DropRate < 0 || c.DropRate >= 1 {
		return fmt.Errorf("доля потерь должна быть в диапазоне [0, 1)")
	}
	return nil
}

// Sensor эмулятор камеры
type Sensor struct {
	cfg       Config
	logger    *zap.Logger
	transport *transport.UDPTransport
	rng       *rand.Rand

	mu        sync.Mutex
	streaming bool
	frameID   uint8
	frameNo   int
	width     int
	height    int

	framesSent    atomic.Uint64
	datagramsSent atomic.Uint64
	starts        atomic.Uint64
	stops         atomic.Uint64
}

// New создает эмулятор и открывает сокет
func New(cfg Config, logger *zap.Logger) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("невалидная конфигурация сенсора: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tc := transport.DefaultConfig()
	tc.LocalAddr = cfg.ListenAddr
	tc.ReceiveTimeout = 50 * time.Millisecond
	tc.SocketRecvBuffer = 0
	tr, err := transport.NewUDPTransport(tc)
	if err != nil {
		return nil, err
	}

	return &Sensor{
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "sensor")),
		transport: tr,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		width:     cfg.Width,
		height:    cfg.Height,
	}, nil
}

// Addr возвращает адрес, на котором эмулятор принимает команды
func (s *Sensor) Addr() *net.UDPAddr {
	addr, _ := s.transport.LocalAddr().(*net.UDPAddr)
	return addr
}

// SetResolution меняет размер отправляемых кадров
func (s *Sensor) SetResolution(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
}

// Streaming сообщает, идет ли отправка кадров
func (s *Sensor) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// FramesSent возвращает число отправленных кадров
func (s *Sensor) FramesSent() uint64 { return s.framesSent.Load() }

// DatagramsSent возвращает число отправленных фрагментов
func (s *Sensor) DatagramsSent() uint64 { return s.datagramsSent.Load() }

// Statistics возвращает счетчики сокета эмулятора
func (s *Sensor) Statistics() *transport.Statistics { return s.transport.Statistics() }

// Starts возвращает число принятых команд START
func (s *Sensor) Starts() uint64 { return s.starts.Load() }

// Stops возвращает число принятых команд STOP
func (s *Sensor) Stops() uint64 { return s.stops.Load() }

// Run обрабатывает команды и отправляет кадры до отмены ctx
func (s *Sensor) Run(ctx context.Context) error {
	defer s.transport.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.controlLoop(ctx)
	}()

	interval := time.Duration(float64(time.Second) / s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sensor started", zap.Stringer("addr", s.transport.LocalAddr()), zap.Float64("fps", s.cfg.FPS))
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("sensor stopped", zap.Uint64("frames_sent", s.framesSent.Load()))
			return nil
		case <-ticker.C:
			if err := s.sendFrame(); err != nil {
				s.logger.Debug("frame send failed", zap.Error(err))
			}
		}
	}
}

func (s *Sensor) controlLoop(ctx context.Context) {
	for ctx.Err() == nil {
		data, addr, err := s.transport.Receive(ctx)
		if err != nil {
			if transport.IsTimeout(err) || ctx.Err() != nil {
				continue
			}
			s.logger.Warn("control receive failed", zap.Error(err))
			continue
		}
		s.handleCommand(strings.TrimSpace(string(data)), addr)
	}
}

func (s *Sensor) handleCommand(cmd string, from net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case transport.CommandStart:
		if err := s.transport.SetRemoteAddr(from.String()); err != nil {
			s.logger.Warn("bad START sender", zap.Stringer("from", from), zap.Error(err))
			return
		}
		s.streaming = true
		s.frameID = 0
		s.starts.Add(1)
		s.logger.Info("START received", zap.Stringer("from", from))
	case transport.CommandStop:
		s.streaming = false
		s.stops.Add(1)
		s.logger.Info("STOP received", zap.Stringer("from", from))
	default:
		s.logger.Debug("unknown command ignored", zap.String("command", cmd))
	}
}

func (s *Sensor) sendFrame() error {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return nil
	}
	frameID := s.frameID
	s.frameID++
	s.frameNo++
	frame := Pattern(s.width, s.height, s.frameNo)
	s.mu.Unlock()

	datagrams, err := fragment.Split(frameID, frame, s.cfg.PayloadSize)
	if err != nil {
		return err
	}

	for _, dg := range datagrams {
		if s.cfg.DropRate > 0 && s.rng.Float64() < s.cfg.DropRate {
			continue
		}
		if err := s.transport.Send(dg); err != nil {
			return err
		}
		s.datagramsSent.Add(1)
	}
	s.framesSent.Add(1)
	return nil
}

// Pattern генерирует кадр YUY2: серый фон и вертикальная полоса, сдвигающаяся
// на 4 пикселя с каждым кадром
func Pattern(width, height, n int) []byte {
	frame := make([]byte, width*height*2)
	barX := (n * 4) % width
	const barWidth = 16

	for y := 0; y < height; y++ {
		row := frame[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			luma := byte(16 + (y*219)/height)
			if x >= barX && x < barX+barWidth {
				luma = 235
			}
			// Y0 U Y1 V
			row[x*2] = luma
			row[x*2+1] = 128
			row[x*2+2] = luma
			row[x*2+3] = 128
		}
	}
	return frame
}
